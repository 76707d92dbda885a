package gromacs

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"metad/internal/runconfig"
	"metad/internal/services"
)

// Parameter-file names produced in the run directory.
const (
	MinimMDP      = "minim.mdp"
	NvtMDP        = "nvt.mdp"
	NptMDP        = "npt.mdp"
	ProductionMDP = "md.mdp"
	IonsMDP       = "ions.mdp"
)

const ionsTemplate = `; Ion placement input
integrator  = steep
emtol       = 1000.0
emstep      = 0.01
nsteps      = 50000
nstlist     = 10
cutoff-scheme = Verlet
coulombtype = cutoff
rcoulomb    = 1.0
rvdw        = 1.0
pbc         = xyz
`

const minimTemplate = `; Energy minimization
integrator  = steep
emtol       = 1000.0
emstep      = 0.01
nsteps      = 50000
nstlist     = 10
cutoff-scheme = Verlet
coulombtype = PME
rcoulomb    = 1.0
rvdw        = 1.0
pbc         = xyz
`

const nvtTemplate = `; Constant-volume equilibration
define      = -DPOSRES
integrator  = md
nsteps      = 50000
dt          = 0.002
nstxout     = 0
nstvout     = 0
nstenergy   = 500
nstlog      = 500
continuation = no
constraint_algorithm = lincs
constraints = h-bonds
cutoff-scheme = Verlet
nstlist     = 10
rcoulomb    = 1.0
rvdw        = 1.0
coulombtype = PME
pme_order   = 4
fourierspacing = 0.16
tcoupl      = V-rescale
tc-grps     = Protein Non-Protein
tau_t       = 0.1 0.1
ref_t       = %[1]s %[1]s
pcoupl      = no
pbc         = xyz
DispCorr    = EnerPres
gen_vel     = yes
gen_temp    = %[1]s
gen_seed    = -1
`

const nptTemplate = `; Constant-pressure equilibration
define      = -DPOSRES
integrator  = md
nsteps      = 50000
dt          = 0.002
nstxout     = 0
nstvout     = 0
nstenergy   = 500
nstlog      = 500
continuation = yes
constraint_algorithm = lincs
constraints = h-bonds
cutoff-scheme = Verlet
nstlist     = 10
rcoulomb    = 1.0
rvdw        = 1.0
coulombtype = PME
pme_order   = 4
fourierspacing = 0.16
tcoupl      = V-rescale
tc-grps     = Protein Non-Protein
tau_t       = 0.1 0.1
ref_t       = %[1]s %[1]s
pcoupl      = Parrinello-Rahman
pcoupltype  = isotropic
tau_p       = 2.0
ref_p       = 1.0
compressibility = 4.5e-5
refcoord_scaling = com
pbc         = xyz
DispCorr    = EnerPres
gen_vel     = no
`

const productionTemplate = `; Production run
integrator  = md
nsteps      = %d
dt          = %s
nstxout-compressed = 5000
nstenergy   = 5000
nstlog      = 5000
continuation = yes
constraint_algorithm = lincs
constraints = h-bonds
cutoff-scheme = Verlet
nstlist     = 10
rcoulomb    = 1.0
rvdw        = 1.0
coulombtype = PME
pme_order   = 4
fourierspacing = 0.16
tcoupl      = V-rescale
tc-grps     = Protein Non-Protein
tau_t       = 0.1 0.1
ref_t       = %[3]s %[3]s
pcoupl      = Parrinello-Rahman
pcoupltype  = isotropic
tau_p       = 2.0
ref_p       = 1.0
compressibility = 4.5e-5
pbc         = xyz
DispCorr    = EnerPres
gen_vel     = no
`

// WriteParameterFiles renders every parameter file the stage chain consumes
// into the run directory, substituting the run's thermostat temperature and
// the production schedule.
func WriteParameterFiles(dir string, rc *runconfig.RunConfig) error {
	temp := formatFloat(rc.Bias.TemperatureK)
	files := map[string]string{
		IonsMDP:  ionsTemplate,
		MinimMDP: minimTemplate,
		NvtMDP:   fmt.Sprintf(nvtTemplate, temp),
		NptMDP:   fmt.Sprintf(nptTemplate, temp),
		ProductionMDP: fmt.Sprintf(productionTemplate,
			rc.Production.Steps,
			strconv.FormatFloat(rc.Production.TimestepPs, 'g', -1, 64),
			temp),
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			return services.Wrap(services.ErrStageFailure, "", "write parameter file", name, err)
		}
	}
	return nil
}
