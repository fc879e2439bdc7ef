package config

import "flag"

// Flags holds CLI flag values that override config file settings.
// Zero values leave the file setting untouched.
type Flags struct {
	Config     string
	Debug      bool
	LogFile    string
	Remesher   string
	Percent    int
	Resolution int
	Format     string
}

// RegisterFlags binds the shared override flags to fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVar(&f.Config, "config", "", "Path to config file")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&f.LogFile, "log-file", "", "Write logs to this file (rotated)")
	fs.StringVar(&f.Remesher, "remesher", "", "Remesher: voxel, quad, decimate, none")
	fs.IntVar(&f.Percent, "percent", 0, "Remesh percent 1-100")
	fs.IntVar(&f.Resolution, "resolution", 0, "Bake resolution (256-8192)")
	fs.StringVar(&f.Format, "format", "", "Image format: png, webp, tga, bmp, tiff")
	return f
}

// ConfigPath returns the explicit config path if provided via --config flag.
func (f *Flags) ConfigPath() string {
	if f == nil {
		return ""
	}
	return f.Config
}

// ApplyPipeline applies the pipeline overrides to p.
func (f *Flags) ApplyPipeline(p *Pipeline) error {
	if f == nil {
		return nil
	}
	if f.Remesher != "" {
		r, err := ParseRemesher(f.Remesher)
		if err != nil {
			return err
		}
		p.Remesher = r
	}
	if f.Percent > 0 {
		p.RemeshPercent = f.Percent
	}
	if f.Resolution > 0 {
		p.Resolution = f.Resolution
	}
	if f.Format != "" {
		format, err := ParseImageFormat(f.Format)
		if err != nil {
			return err
		}
		p.ImageFormat = format
	}
	return nil
}

// apply applies CLI flag overrides to the config.
func (f *Flags) apply(cfg *Config) error {
	if f == nil {
		return nil
	}
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.LogFile != "" {
		cfg.Logging.LogFile = f.LogFile
	}
	return f.ApplyPipeline(&cfg.Pipeline)
}
