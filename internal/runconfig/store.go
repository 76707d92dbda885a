package runconfig

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"metad/internal/services"
)

// RecordName is the run-record filename inside a run directory.
const RecordName = "run.conf"

const recordVersion = 1

// Save writes the run record to path. The encoding is a stable key=value text
// record: scalars first, then indexed CV entries, wall entries, and grid
// vectors. Equal configs always serialize to identical bytes.
func Save(cfg *RunConfig, path string) error {
	var b strings.Builder
	writeKV := func(key, value string) {
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(value)
		b.WriteByte('\n')
	}

	writeKV("version", strconv.Itoa(recordVersion))
	writeKV("protein", cfg.Protein)
	writeKV("ligand", cfg.Ligand)
	writeKV("forcefield.name", cfg.ForceField.Name)
	writeKV("forcefield.origin", string(cfg.ForceField.Origin))
	writeKV("box.shape", cfg.Box.Shape)
	writeKV("box.edge_nm", formatFloat(cfg.Box.EdgeNm))
	writeKV("water.model", cfg.Box.WaterModel)
	writeKV("ion.molarity", formatFloat(cfg.Box.IonMolarity))
	writeKV("production.time_ns", formatFloat(cfg.Production.TimeNs))
	writeKV("production.timestep_ps", formatFloat(cfg.Production.TimestepPs))
	writeKV("production.steps", strconv.FormatInt(cfg.Production.Steps, 10))
	writeKV("temperature_k", formatFloat(cfg.TemperatureK))
	writeKV("bias.height", formatFloat(cfg.Bias.HeightKJ))
	writeKV("bias.pace", strconv.Itoa(cfg.Bias.PaceSteps))
	writeKV("bias.factor", formatFloat(cfg.Bias.Factor))
	writeKV("bias.print_stride", strconv.Itoa(cfg.Bias.PrintStride))
	writeKV("bias.walkers", strconv.Itoa(cfg.Bias.Walkers))

	writeKV("cv.count", strconv.Itoa(len(cfg.Bias.CVs)))
	for i, cv := range cfg.Bias.CVs {
		prefix := fmt.Sprintf("cv.%d.", i)
		writeKV(prefix+"kind", string(cv.Kind))
		writeKV(prefix+"sigma", formatFloat(cv.Sigma))
		switch cv.Kind {
		case CVDistance:
			writeKV(prefix+"groups", cv.Groups[0]+";"+cv.Groups[1])
		case CVCoordination:
			writeKV(prefix+"groups", cv.Groups[0]+";"+cv.Groups[1])
			writeKV(prefix+"r0", formatFloat(cv.R0))
		case CVTorsion:
			writeKV(prefix+"atoms", formatAtoms(cv.Atoms))
		case CVRMSD:
			writeKV(prefix+"reference", cv.Reference)
		}
	}

	writeKV("wall.count", strconv.Itoa(len(cfg.Bias.Walls)))
	for i, wall := range cfg.Bias.Walls {
		writeKV(fmt.Sprintf("wall.%d", i), fmt.Sprintf("%d;%s;%s;%s",
			wall.CV, wall.Bound, formatFloat(wall.At), formatFloat(wall.Kappa)))
	}

	if cfg.Bias.Grid != nil {
		writeKV("grid.min", joinFloats(cfg.Bias.Grid.Min))
		writeKV("grid.max", joinFloats(cfg.Bias.Grid.Max))
		writeKV("grid.bin", joinInts(cfg.Bias.Grid.Bins))
	}

	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// Load reads a run record back into a RunConfig. CV entries are rebuilt
// through the variant constructors so arity violations in an edited record are
// caught here rather than mid-pipeline. Any malformed or missing field is a
// configuration error: resume cannot guess stage-relevant parameters.
func Load(path string) (*RunConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "run record", fmt.Sprintf("open %s", path), err)
	}
	defer file.Close()

	values := map[string]string{}
	scanner := bufio.NewScanner(file)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		key, value, found := strings.Cut(text, "=")
		if !found {
			return nil, services.Wrap(services.ErrConfiguration, "", "run record",
				fmt.Sprintf("%s:%d: not a key=value line: %q", path, line, text), nil)
		}
		values[strings.TrimSpace(key)] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "run record", fmt.Sprintf("read %s", path), err)
	}

	r := &reader{values: values}
	if version := r.intField("version"); version != recordVersion {
		if r.err == nil {
			r.err = fmt.Errorf("unsupported record version %d", version)
		}
	}

	origin := ForceFieldOrigin(r.field("forcefield.origin"))
	if origin != ForceFieldBundled && origin != ForceFieldSystem && r.err == nil {
		r.err = fmt.Errorf("field %q: must be %q or %q, got %q",
			"forcefield.origin", ForceFieldBundled, ForceFieldSystem, origin)
	}

	cfg := &RunConfig{
		Protein: r.field("protein"),
		Ligand:  r.optional("ligand"),
		ForceField: ForceField{
			Name:   r.field("forcefield.name"),
			Origin: origin,
		},
		Box: Box{
			Shape:       r.field("box.shape"),
			EdgeNm:      r.floatField("box.edge_nm"),
			WaterModel:  r.field("water.model"),
			IonMolarity: r.floatField("ion.molarity"),
		},
		Production: Production{
			TimeNs:     r.floatField("production.time_ns"),
			TimestepPs: r.floatField("production.timestep_ps"),
			Steps:      int64(r.intField("production.steps")),
		},
		TemperatureK: r.floatField("temperature_k"),
		Bias: BiasConfig{
			HeightKJ:     r.floatField("bias.height"),
			PaceSteps:    r.intField("bias.pace"),
			Factor:       r.floatField("bias.factor"),
			TemperatureK: r.floatField("temperature_k"),
			PrintStride:  r.intField("bias.print_stride"),
			Walkers:      r.intField("bias.walkers"),
		},
	}

	cvCount := r.intField("cv.count")
	for i := 0; i < cvCount && r.err == nil; i++ {
		cv, err := r.readCV(i)
		if err != nil {
			r.err = err
			break
		}
		cfg.Bias.CVs = append(cfg.Bias.CVs, cv)
	}

	wallCount := r.intField("wall.count")
	for i := 0; i < wallCount && r.err == nil; i++ {
		wall, err := parseWall(r.field(fmt.Sprintf("wall.%d", i)))
		if err != nil {
			r.err = err
			break
		}
		cfg.Bias.Walls = append(cfg.Bias.Walls, wall)
	}

	if _, ok := values["grid.min"]; ok && r.err == nil {
		grid := &GridSpec{
			Min:  r.floatList("grid.min"),
			Max:  r.floatList("grid.max"),
			Bins: r.intList("grid.bin"),
		}
		cfg.Bias.Grid = grid
	}

	if r.err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "run record", path, r.err)
	}
	if err := cfg.Bias.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type reader struct {
	values map[string]string
	err    error
}

func (r *reader) field(key string) string {
	value, ok := r.values[key]
	if !ok && r.err == nil {
		r.err = fmt.Errorf("missing field %q", key)
	}
	return value
}

func (r *reader) optional(key string) string {
	return r.values[key]
}

func (r *reader) floatField(key string) float64 {
	raw := r.field(key)
	if r.err != nil {
		return 0
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		r.err = fmt.Errorf("field %q: %w", key, err)
		return 0
	}
	return value
}

func (r *reader) intField(key string) int {
	raw := r.field(key)
	if r.err != nil {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		r.err = fmt.Errorf("field %q: %w", key, err)
		return 0
	}
	return value
}

func (r *reader) floatList(key string) []float64 {
	raw := r.field(key)
	if r.err != nil {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]float64, 0, len(parts))
	for _, part := range parts {
		value, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			r.err = fmt.Errorf("field %q: %w", key, err)
			return nil
		}
		values = append(values, value)
	}
	return values
}

func (r *reader) intList(key string) []int {
	raw := r.field(key)
	if r.err != nil {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]int, 0, len(parts))
	for _, part := range parts {
		value, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			r.err = fmt.Errorf("field %q: %w", key, err)
			return nil
		}
		values = append(values, value)
	}
	return values
}

func (r *reader) readCV(index int) (CVSpec, error) {
	prefix := fmt.Sprintf("cv.%d.", index)
	kind := CVKind(r.field(prefix + "kind"))
	sigma := r.floatField(prefix + "sigma")
	if r.err != nil {
		return CVSpec{}, r.err
	}
	switch kind {
	case CVDistance, CVCoordination:
		groups := r.field(prefix + "groups")
		if r.err != nil {
			return CVSpec{}, r.err
		}
		groupA, groupB, found := strings.Cut(groups, ";")
		if !found {
			return CVSpec{}, fmt.Errorf("field %q: expected two selectors separated by ';'", prefix+"groups")
		}
		if kind == CVDistance {
			return NewDistanceCV(groupA, groupB, sigma)
		}
		r0 := DefaultCoordinationR0
		if raw, ok := r.values[prefix+"r0"]; ok {
			parsed, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return CVSpec{}, fmt.Errorf("field %q: %w", prefix+"r0", err)
			}
			r0 = parsed
		}
		return NewCoordinationCV(groupA, groupB, r0, sigma)
	case CVTorsion:
		raw := r.field(prefix + "atoms")
		if r.err != nil {
			return CVSpec{}, r.err
		}
		parts := strings.Split(raw, ",")
		if len(parts) != 4 {
			return CVSpec{}, fmt.Errorf("field %q: torsion requires exactly four atom indices, got %d", prefix+"atoms", len(parts))
		}
		var atoms [4]int
		for i, part := range parts {
			value, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return CVSpec{}, fmt.Errorf("field %q: %w", prefix+"atoms", err)
			}
			atoms[i] = value
		}
		return NewTorsionCV(atoms, sigma)
	case CVRMSD:
		reference := r.field(prefix + "reference")
		if r.err != nil {
			return CVSpec{}, r.err
		}
		return NewRMSDCV(reference, sigma)
	default:
		return CVSpec{}, fmt.Errorf("field %q: unknown CV kind %q", prefix+"kind", kind)
	}
}

func parseWall(raw string) (WallSpec, error) {
	parts := strings.Split(raw, ";")
	if len(parts) != 4 {
		return WallSpec{}, fmt.Errorf("wall entry %q: expected cv;bound;at;kappa", raw)
	}
	cv, err := strconv.Atoi(parts[0])
	if err != nil {
		return WallSpec{}, fmt.Errorf("wall entry %q: %w", raw, err)
	}
	at, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return WallSpec{}, fmt.Errorf("wall entry %q: %w", raw, err)
	}
	kappa, err := strconv.ParseFloat(parts[3], 64)
	if err != nil {
		return WallSpec{}, fmt.Errorf("wall entry %q: %w", raw, err)
	}
	return WallSpec{CV: cv, Bound: WallBound(parts[1]), At: at, Kappa: kappa}, nil
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'g', -1, 64)
}

func formatAtoms(atoms [4]int) string {
	parts := make([]string, len(atoms))
	for i, atom := range atoms {
		parts[i] = strconv.Itoa(atom)
	}
	return strings.Join(parts, ",")
}

func joinFloats(values []float64) string {
	parts := make([]string, len(values))
	for i, value := range values {
		parts[i] = formatFloat(value)
	}
	return strings.Join(parts, ",")
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, value := range values {
		parts[i] = strconv.Itoa(value)
	}
	return strings.Join(parts, ",")
}
