package config

const (
	defaultConfigPath          = "~/.config/stereomatch/config.toml"
	defaultStateDir            = "~/.local/share/stereomatch"
	defaultLogDir              = "~/.local/share/stereomatch/logs"
	defaultLogRetentionDays    = 30
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultCalibration         = "default"
	defaultModel               = "model"
	defaultSource              = "nature"
	defaultWindowSeconds       = 0.002
	defaultContaminationPeriod = 1800
	defaultContaminationBefore = 3
	defaultContaminationAfter  = 32
	defaultPrimaryPair         = "bl"
	defaultPrimaryDeviation    = 60.0
	defaultMinDurationRatio    = 0.5
	defaultMaxZenith           = 82.0
	defaultTubeLabel           = "tbst"
	defaultPlaneLabel          = "pfst"
	defaultMaxOutstanding      = 28800
	defaultPollIntervalSeconds = 60

	// maxSchedulerJobID is the largest id a signed 32-bit scheduler can hand out.
	maxSchedulerJobID = 1<<31 - 1
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Night: Night{
			Calibration: defaultCalibration,
			Model:       defaultModel,
			Source:      defaultSource,
		},
		Correlation: Correlation{
			WindowSeconds: defaultWindowSeconds,
		},
		Contamination: Contamination{
			PeriodSeconds: defaultContaminationPeriod,
			BeforeSeconds: defaultContaminationBefore,
			AfterSeconds:  defaultContaminationAfter,
		},
		Geometry: Geometry{
			PrimaryPair:         defaultPrimaryPair,
			MaxPrimaryDeviation: defaultPrimaryDeviation,
		},
		Plausibility: Plausibility{
			MinDurationRatio: defaultMinDurationRatio,
			MaxZenith:        defaultMaxZenith,
		},
		Profile: Profile{
			TubeLabel:  defaultTubeLabel,
			PlaneLabel: defaultPlaneLabel,
		},
		Scheduler: Scheduler{
			SubmitBinary:        "sbatch",
			SubmitArgs:          []string{"--parsable", "--job-name={name}", "--output={stdout}", "--error={stderr}", "--wrap={command}"},
			ListBinary:          "squeue",
			ListArgs:            []string{"--noheader", "--format=%i %t %j"},
			MaxOutstanding:      defaultMaxOutstanding,
			PollIntervalSeconds: defaultPollIntervalSeconds,
		},
		Tools: Tools{
			DetectionDump: "dstdownlist",
			Split:         "dstsplit",
			PlaneSolver:   "stplane",
			PlaneFit:      "mdplane",
			Inspect:       "dstdump",
			EventMerge:    "eventmerge",
			BankSum:       "dstsum",
			TupleDump:     "dumpst",
			ProfileDump:   "dumpster",
			TubeProfile:   "fdtubeprofile",
			PlaneProfile:  "stpfl",
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
