package config

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Environment names accepted by the -env flag
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// ONASPORT serial numbers are exactly 10 decimal digits
const (
	serialNumberLength = 10
	minSerialNumber    = 1000000000
	maxSerialNumber    = 9999999999
)

// Config holds the parsed command-line arguments for one provisioning run.
// It is not modified after Parse returns.
type Config struct {
	Environment      string
	Username         string
	Password         string
	SerialNumber     string
	Organization     string
	RegistrationCode string
	Description      string
	Version          string
	OutputDirectory  string
	SettingsPath     string

	// SerialValid reports whether SerialNumber passed validation. An invalid
	// serial is recorded, not rejected: the run still finalizes and writes
	// its traceability file, it just skips all network work.
	SerialValid bool
}

// Parse parses command-line arguments into a Config. A missing required flag
// or an unknown environment is a hard error; serial-number content violations
// only clear SerialValid.
func Parse(args []string, errW io.Writer) (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet("biotupload", flag.ContinueOnError)
	fs.SetOutput(errW)
	fs.StringVar(&cfg.Environment, "env", "", "Environment in BioT: 'production' or 'development'")
	fs.StringVar(&cfg.Username, "user", "", "Username to log into BioT for the corresponding environment")
	fs.StringVar(&cfg.Password, "password", "", "Password to log into BioT for the corresponding environment")
	fs.StringVar(&cfg.SerialNumber, "sn", "", "Serial number of the device on which the tool operates")
	fs.StringVar(&cfg.Organization, "org", "", "Organization to which the device will be assigned")
	fs.StringVar(&cfg.RegistrationCode, "rc", "", "Registration code to which the device will be assigned")
	fs.StringVar(&cfg.Description, "description", "", "Advertising name of the device, shown as its description in BioT")
	fs.StringVar(&cfg.Version, "version", "", "Version of the ONASPORT device")
	fs.StringVar(&cfg.OutputDirectory, "output", ".", "Directory where the traceability file is stored after completion")
	fs.StringVar(&cfg.SettingsPath, "config", "", "Optional YAML settings file (endpoints, timeouts)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var missing []string
	for _, f := range []struct{ name, value string }{
		{"-env", cfg.Environment},
		{"-user", cfg.Username},
		{"-password", cfg.Password},
		{"-sn", cfg.SerialNumber},
		{"-org", cfg.Organization},
		{"-rc", cfg.RegistrationCode},
		{"-description", cfg.Description},
		{"-version", cfg.Version},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required flags: %s", strings.Join(missing, ", "))
	}

	if cfg.Environment != EnvProduction && cfg.Environment != EnvDevelopment {
		return nil, fmt.Errorf("invalid -env %q: must be %q or %q", cfg.Environment, EnvProduction, EnvDevelopment)
	}

	cfg.SerialValid = ValidateSerialNumber(cfg.SerialNumber)

	return cfg, nil
}

// ValidateSerialNumber reports whether sn is exactly 10 decimal digits with a
// numeric value in [1000000000, 9999999999].
func ValidateSerialNumber(sn string) bool {
	if len(sn) != serialNumberLength {
		return false
	}
	for _, r := range sn {
		if r < '0' || r > '9' {
			return false
		}
	}
	n, err := strconv.ParseInt(sn, 10, 64)
	if err != nil {
		return false
	}
	return n >= minSerialNumber && n <= maxSerialNumber
}
