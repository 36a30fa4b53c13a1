package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"f0oster/adexpiry/resolver"

	"github.com/joho/godotenv"
)

const defaultPageSize = 1000

type Configuration struct {
	ForestRoot string
	DcFQDN     string
	Username   string
	Password   string
	PageSize   uint32
	UseTLS     bool
	Domains    []string

	OverrideEmailAttribute   string
	OverrideManagerAttribute string
	KeyField                 string
	ExtraAttributes          []string
	IncludeContacts          bool

	Dsn           string
	ManagementDsn string
}

// LoadEnvConfig reads settings from the env file at configName, with variables
// already set in the process environment taking precedence. A missing file is
// not an error.
func LoadEnvConfig(configName string) (Configuration, error) {
	fileEnv := map[string]string{}
	if configName != "" {
		var err error
		fileEnv, err = godotenv.Read(configName)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Configuration{}, fmt.Errorf("error loading %s: %w", configName, err)
		}
	}

	get := func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return strings.TrimSpace(v)
		}
		return strings.TrimSpace(fileEnv[key])
	}

	var errs []error

	pageSize := uint32(defaultPageSize)
	if v := get("LDAP_PAGESIZE"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			errs = append(errs, fmt.Errorf("LDAP_PAGESIZE: %w", err))
		}
		pageSize = uint32(parsed)
	}

	useTLS, err := parseBool(get("LDAP_USE_TLS"), false)
	if err != nil {
		errs = append(errs, fmt.Errorf("LDAP_USE_TLS: %w", err))
	}

	includeContacts, err := parseBool(get("ADEXPIRY_INCLUDE_CONTACTS"), true)
	if err != nil {
		errs = append(errs, fmt.Errorf("ADEXPIRY_INCLUDE_CONTACTS: %w", err))
	}

	cfg := Configuration{
		ForestRoot: get("LDAP_FOREST_ROOT"),
		DcFQDN:     get("LDAP_DCFQDN"),
		Username:   get("LDAP_USERNAME"),
		Password:   get("LDAP_PASSWORD"),
		PageSize:   pageSize,
		UseTLS:     useTLS,
		Domains:    splitList(get("LDAP_DOMAINS")),

		OverrideEmailAttribute:   get("ADEXPIRY_OVERRIDE_EMAIL_ATTRIBUTE"),
		OverrideManagerAttribute: get("ADEXPIRY_OVERRIDE_MANAGER_ATTRIBUTE"),
		KeyField:                 get("ADEXPIRY_KEY_FIELD"),
		ExtraAttributes:          splitList(get("ADEXPIRY_EXTRA_ATTRIBUTES")),
		IncludeContacts:          includeContacts,

		Dsn:           get("DATABASE_DSN"),
		ManagementDsn: get("DATABASE_MANAGEMENT_DSN"),
	}
	return cfg, errors.Join(errs...)
}

// Validate checks the settings a directory run needs.
func (c Configuration) Validate() error {
	var errs []error
	if c.ForestRoot == "" {
		errs = append(errs, errors.New("LDAP_FOREST_ROOT is required"))
	}
	if c.DcFQDN == "" {
		errs = append(errs, errors.New("LDAP_DCFQDN is required"))
	}
	if c.Username == "" {
		errs = append(errs, errors.New("LDAP_USERNAME is required"))
	}
	if c.PageSize == 0 {
		errs = append(errs, errors.New("LDAP_PAGESIZE must be greater than zero"))
	}
	if _, err := resolver.ParseKeyField(c.KeyField); err != nil {
		errs = append(errs, fmt.Errorf("ADEXPIRY_KEY_FIELD: %w", err))
	}
	return errors.Join(errs...)
}

// ValidateDatabase checks the settings persistence needs.
func (c Configuration) ValidateDatabase(needManagement bool) error {
	var errs []error
	if c.Dsn == "" {
		errs = append(errs, errors.New("DATABASE_DSN is required"))
	}
	if needManagement && c.ManagementDsn == "" {
		errs = append(errs, errors.New("DATABASE_MANAGEMENT_DSN is required"))
	}
	return errors.Join(errs...)
}

// ResolverOptions maps the settings onto a resolution pass.
func (c Configuration) ResolverOptions() (resolver.Options, error) {
	keyField, err := resolver.ParseKeyField(c.KeyField)
	if err != nil {
		return resolver.Options{}, err
	}
	return resolver.Options{
		OverrideEmailAttribute:   c.OverrideEmailAttribute,
		OverrideManagerAttribute: c.OverrideManagerAttribute,
		KeyField:                 keyField,
		ExtensionAttributes:      c.ExtraAttributes,
		IncludeContacts:          c.IncludeContacts,
	}, nil
}

// FetchAttributes lists the configured attributes the fetcher must request on
// top of its fixed set.
func (c Configuration) FetchAttributes() []string {
	var attrs []string
	for _, name := range []string{c.OverrideEmailAttribute, c.OverrideManagerAttribute} {
		if name != "" {
			attrs = append(attrs, name)
		}
	}
	return append(attrs, c.ExtraAttributes...)
}

func parseBool(v string, fallback bool) (bool, error) {
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback, err
	}
	return b, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
