package config

const (
	defaultVolume       = 0.5
	defaultPlayerBinary = "ffplay"
	defaultNoiseColor   = "brown"
	defaultLogFormat    = "console"
	defaultLogLevel     = "info"
	pidFileName         = "noiseplayer.pid"
)

// Default returns a Config populated with repository defaults.
// Paths are left unexpanded; Load normalizes them.
func Default() Config {
	return Config{
		Volume: defaultVolume,
		Player: Player{
			Binary: defaultPlayerBinary,
			Color:  defaultNoiseColor,
		},
		Paths: Paths{
			PIDFile:  DefaultPIDFile(),
			StateDir: defaultStateDir(),
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
