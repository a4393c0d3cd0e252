package cmd

// DefaultProjectConfigFilename describes the default config filename looked
// up in the current working directory when --config is not supplied.
const DefaultProjectConfigFilename = "phink.toml"
