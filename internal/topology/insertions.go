package topology

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	forceFieldIncludeRe = regexp.MustCompile(`^\s*#include\s+".*forcefield\.itp"`)
	moleculesSectionRe  = regexp.MustCompile(`^\s*\[\s*molecules\s*\]`)
	includeRe           = regexp.MustCompile(`^\s*#include\s+"([^"]+)"`)
)

// LigandParameterInclude splices the ligand parameter include immediately
// after the force-field include line.
func LigandParameterInclude(ligand string) Insertion {
	include := fmt.Sprintf("#include %q", ligand+".prm")
	return Insertion{
		Kind:   "ligand_parameter_include",
		Exists: func(d *Document) bool { return d.ContainsLine(include) },
		Anchor: func(d *Document) (int, bool) {
			return d.findLine(forceFieldIncludeRe.MatchString)
		},
		Lines: []string{
			"",
			"; Ligand parameters",
			include,
		},
	}
}

// LigandTopologyInclude splices the ligand topology include immediately after
// the ligand parameter include.
func LigandTopologyInclude(ligand string) Insertion {
	include := fmt.Sprintf("#include %q", ligand+".itp")
	paramInclude := ligand + ".prm"
	return Insertion{
		Kind:   "ligand_topology_include",
		Exists: func(d *Document) bool { return d.ContainsLine(include) },
		Anchor: func(d *Document) (int, bool) {
			return d.findLine(func(line string) bool {
				return includesFile(line, paramInclude)
			})
		},
		Lines: []string{
			"",
			"; Ligand topology",
			include,
		},
	}
}

// LigandRestraints splices a position-restraint block guarded by POSRES_LIG
// immediately after the ligand topology include.
func LigandRestraints(ligand string) Insertion {
	restraint := fmt.Sprintf("#include %q", "posre_"+ligand+".itp")
	topInclude := ligand + ".itp"
	return Insertion{
		Kind:   "ligand_restraints",
		Exists: func(d *Document) bool { return d.ContainsLine(restraint) },
		Anchor: func(d *Document) (int, bool) {
			return d.findLine(func(line string) bool {
				return includesFile(line, topInclude)
			})
		},
		Lines: []string{
			"",
			"; Ligand position restraints",
			"#ifdef POSRES_LIG",
			restraint,
			"#endif",
		},
	}
}

// MoleculeRow appends the ligand molecule-count row immediately after the row
// whose first column equals the principal molecule's name inside the
// [ molecules ] table.
func MoleculeRow(principal, ligand string, count int) Insertion {
	return Insertion{
		Kind: "molecule_row",
		Exists: func(d *Document) bool {
			start, ok := moleculesTableStart(d)
			if !ok {
				return false
			}
			for _, line := range d.lines[start:] {
				if firstColumn(line) == ligand {
					return true
				}
			}
			return false
		},
		Anchor: func(d *Document) (int, bool) {
			start, ok := moleculesTableStart(d)
			if !ok {
				return 0, false
			}
			for i := start; i < len(d.lines); i++ {
				if firstColumn(d.lines[i]) == principal {
					return i, true
				}
			}
			return 0, false
		},
		Lines: []string{fmt.Sprintf("%-18s %d", ligand, count)},
	}
}

// RestartMarker marks a bias-directive document as a continuation of an
// earlier production run. PLUMED resumes hill accumulation when the first
// effective line reads RESTART.
func RestartMarker() Insertion {
	return Insertion{
		Kind: "restart_marker",
		Exists: func(d *Document) bool {
			return d.ContainsLine("RESTART")
		},
		Anchor: func(d *Document) (int, bool) {
			// Top of the document, ahead of every directive.
			return -1, true
		},
		Lines: []string{"RESTART"},
	}
}

func includesFile(line, file string) bool {
	match := includeRe.FindStringSubmatch(line)
	return match != nil && match[1] == file
}

func moleculesTableStart(d *Document) (int, bool) {
	idx, ok := d.findLine(moleculesSectionRe.MatchString)
	if !ok {
		return 0, false
	}
	return idx + 1, true
}

func firstColumn(line string) string {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "[") {
		return ""
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
