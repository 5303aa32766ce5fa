package config

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	dbFileName     = "issuesnap.db"
	configFileName = "config.yaml"
	dirName        = ".issuesnap"

	DefaultServiceURL  = "https://api.github.com"
	DefaultProjectsAPI = "classic"
	DefaultWarehouse   = "sqlite"
	DefaultTable       = "ISSUE"
)

// Warehouse backends.
const (
	WarehouseSQLite   = "sqlite"
	WarehouseBigQuery = "bigquery"
)

var (
	validProjectsAPIs = []string{"classic", "v2", "auto"}
	validWarehouses   = []string{WarehouseSQLite, WarehouseBigQuery}
)

// ErrCredentials is returned when the service-account blob is missing or
// cannot be decoded into JSON.
var ErrCredentials = errors.New("invalid service account credentials")

// Settings are the user-tunable values. Each may come from the YAML config
// file or from an ISSUESNAP_* environment variable; the environment wins.
type Settings struct {
	ServiceURL    string `yaml:"service_url" json:"service_url"`
	Token         string `yaml:"github_token" json:"github_token"`
	Owner         string `yaml:"owner" json:"owner"`
	Repo          string `yaml:"repo" json:"repo"`
	ProjectsAPI   string `yaml:"projects_api" json:"projects_api"`
	IssueQuery    string `yaml:"issue_query" json:"issue_query,omitempty"`
	Warehouse     string `yaml:"warehouse" json:"warehouse"`
	GCloudProject string `yaml:"gcloud_project" json:"gcloud_project,omitempty"`
	GCloudDataset string `yaml:"gcloud_dataset" json:"gcloud_dataset,omitempty"`
	Table         string `yaml:"table" json:"table"`
	GCloudAccount string `yaml:"gcloud_account" json:"gcloud_account,omitempty"`
}

// Config holds resolved configuration for a run.
type Config struct {
	Settings
	Dir        string // resolved .issuesnap directory path
	DBPath     string // full path to issuesnap.db
	ConfigFile string // config file that was read, empty if none
	EnvVarSet  bool   // whether ISSUESNAP_PATH was used
}

// envKeys maps each environment variable to the setting it overrides.
func envKeys(s *Settings) map[string]*string {
	return map[string]*string{
		"ISSUESNAP_SERVICE_URL":    &s.ServiceURL,
		"ISSUESNAP_GITHUB_TOKEN":   &s.Token,
		"ISSUESNAP_OWNER":          &s.Owner,
		"ISSUESNAP_REPO":           &s.Repo,
		"ISSUESNAP_PROJECTS_API":   &s.ProjectsAPI,
		"ISSUESNAP_ISSUE_QUERY":    &s.IssueQuery,
		"ISSUESNAP_WAREHOUSE":      &s.Warehouse,
		"ISSUESNAP_GCLOUD_PROJECT": &s.GCloudProject,
		"ISSUESNAP_GCLOUD_DATASET": &s.GCloudDataset,
		"ISSUESNAP_TABLE":          &s.Table,
		"ISSUESNAP_GCLOUD_ACCOUNT": &s.GCloudAccount,
	}
}

// Resolve returns the current configuration. The state directory is
// ISSUESNAP_PATH when set, else $PWD/.issuesnap. Settings are read from
// config.yaml in that directory when present, then overridden by the
// environment, then defaulted.
func Resolve() (*Config, error) {
	var dir string
	var envVarSet bool

	if envPath := os.Getenv("ISSUESNAP_PATH"); envPath != "" {
		dir = envPath
		envVarSet = true
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(cwd, dirName)
	}

	cfg := &Config{
		Dir:       dir,
		DBPath:    filepath.Join(dir, dbFileName),
		EnvVarSet: envVarSet,
	}

	path := filepath.Join(dir, configFileName)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg.Settings); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		cfg.ConfigFile = path
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	for key, dst := range envKeys(&cfg.Settings) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ServiceURL == "" {
		c.ServiceURL = DefaultServiceURL
	}
	if c.ProjectsAPI == "" {
		c.ProjectsAPI = DefaultProjectsAPI
	}
	if c.Warehouse == "" {
		c.Warehouse = DefaultWarehouse
	}
	if c.Table == "" {
		c.Table = DefaultTable
	}
	c.ProjectsAPI = strings.ToLower(c.ProjectsAPI)
	c.Warehouse = strings.ToLower(c.Warehouse)
}

// Validate checks the settings a pipeline run needs. It does not decode
// credentials; see Credentials.
func (c *Config) Validate() error {
	var problems []string

	if c.Owner == "" {
		problems = append(problems, "owner is required (ISSUESNAP_OWNER)")
	}
	if c.Repo == "" {
		problems = append(problems, "repo is required (ISSUESNAP_REPO)")
	}
	if !contains(validProjectsAPIs, c.ProjectsAPI) {
		problems = append(problems, fmt.Sprintf("invalid projects_api %q: must be one of %s", c.ProjectsAPI, strings.Join(validProjectsAPIs, ", ")))
	}
	if !contains(validWarehouses, c.Warehouse) {
		problems = append(problems, fmt.Sprintf("invalid warehouse %q: must be one of %s", c.Warehouse, strings.Join(validWarehouses, ", ")))
	}
	if c.Warehouse == WarehouseBigQuery {
		if c.GCloudProject == "" {
			problems = append(problems, "gcloud_project is required for the bigquery warehouse (ISSUESNAP_GCLOUD_PROJECT)")
		}
		if c.GCloudDataset == "" {
			problems = append(problems, "gcloud_dataset is required for the bigquery warehouse (ISSUESNAP_GCLOUD_DATASET)")
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// TableName returns the destination table as project.dataset.table for the
// bigquery warehouse and the bare table name otherwise.
func (c *Config) TableName() string {
	if c.Warehouse == WarehouseBigQuery {
		return c.GCloudProject + "." + c.GCloudDataset + "." + c.Table
	}
	return c.Table
}

// Credentials decodes the base64 service-account blob and checks that it
// holds a JSON object.
func (c *Config) Credentials() ([]byte, error) {
	if c.GCloudAccount == "" {
		return nil, fmt.Errorf("%w: ISSUESNAP_GCLOUD_ACCOUNT is not set", ErrCredentials)
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(c.GCloudAccount))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding base64: %v", ErrCredentials, err)
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("%w: decoding JSON: %v", ErrCredentials, err)
	}

	return raw, nil
}

// Redacted returns the settings with secrets masked, for display.
func (c *Config) Redacted() Settings {
	s := c.Settings
	s.Token = mask(s.Token)
	s.GCloudAccount = mask(s.GCloudAccount)
	return s
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
