package config

type Platforms map[string]*Platform

type Platform struct {
	// Path is the directory games for this platform are installed under.
	// Empty means a directory named after the platform beneath the library
	// root.
	Path string `yaml:"path" toml:"path"`

	// AutoExtract unpacks single-file downloads that turn out to be
	// archives. Container downloads are always unpacked.
	AutoExtract bool `yaml:"auto_extract" toml:"auto_extract"`

	// Extensions lists the file extensions the emulator for this platform
	// recognizes. Only used to pick the primary file out of a container
	// install.
	Extensions []string `yaml:"extensions" toml:"extensions"`
}

// UnmarshalYAML accepts either the full mapping or a plain string shorthand
// holding just the install path, in which case auto extraction is on.
func (p *Platform) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var value string
	if unmarshal(&value) == nil {
		p.Path = value
		p.AutoExtract = true
		return nil
	}

	type platform Platform
	aux := (*platform)(p)
	if err := unmarshal(aux); err != nil {
		return err
	}

	return nil
}

func (p *Platform) UnmarshalText(b []byte) error {
	*p = Platform{
		Path:        string(b),
		AutoExtract: true,
	}
	return nil
}
