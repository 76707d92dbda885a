package config

import (
	"os"
	"path/filepath"
)

// Default returns the baseline configuration used when no file is present.
func Default() Config {
	return Config{
		Paths: Paths{
			RunsDir: filepath.Join(dataHome(), "metad", "runs"),
			LogDir:  filepath.Join(dataHome(), "metad", "logs"),
		},
		Engine: Engine{
			GmxBinary:    "gmx",
			PythonBinary: "python3",
			ScriptDir:    "scripts",
		},
		Defaults: Defaults{
			ForceField:   "amber99sb-ildn",
			WaterModel:   "tip3p",
			BoxShape:     "dodecahedron",
			BoxEdgeNm:    1.0,
			IonMolarity:  0.15,
			TemperatureK: 300,
			TimestepPs:   0.002,
			ProductionNs: 100,
			BiasHeight:   1.2,
			BiasPace:     500,
			BiasFactor:   15,
			PrintStride:  500,
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}

func dataHome() string {
	if base, ok := os.LookupEnv("XDG_DATA_HOME"); ok && base != "" {
		return base
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share")
}
