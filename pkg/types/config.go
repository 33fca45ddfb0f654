package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the per-request timeout (default 300s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "paper-harvester/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// Retries is the total number of attempts made for a failing
	// request before giving up (default 3).
	Retries int `json:"retries" yaml:"retries"`

	// RetryDelay is the fixed pause between attempts (default 5s).
	RetryDelay time.Duration `json:"retry_delay" yaml:"retry_delay"`
}

// HarvestConfig holds settings for the harvest stage.
type HarvestConfig struct {
	HTTPConfig `yaml:",inline"`

	// BaseURL is the proceedings site root (default "https://papers.nips.cc").
	BaseURL string `json:"base_url" yaml:"base_url"`

	// DownloadDir is the directory PDFs are downloaded into.
	DownloadDir string `json:"download_dir" yaml:"download_dir"`

	// CSVPath is the tabular store path.
	CSVPath string `json:"csv_path" yaml:"csv_path"`

	// JSONPath is the structured store path.
	JSONPath string `json:"json_path" yaml:"json_path"`

	// YearDelay is the pause between consecutive years (default 5s).
	YearDelay time.Duration `json:"year_delay" yaml:"year_delay"`
}

// AnnotationBackend identifies the model provider used for classification.
type AnnotationBackend string

const (
	BackendOpenAI AnnotationBackend = "openai"
	BackendGemini AnnotationBackend = "gemini"
)

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	// Backend selects the provider: openai or gemini.
	Backend AnnotationBackend `json:"backend" yaml:"backend"`

	// Model is the AI model identifier (e.g. "gpt-3.5-turbo").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxRetries is the number of retry attempts for failed API calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// AnnotationConfig holds settings for the annotation stage.
type AnnotationConfig struct {
	AIConfig `yaml:",inline"`

	// Categories is the closed label set papers are classified into.
	Categories []string `json:"categories" yaml:"categories"`

	// InputPath is the structured store read by the pass.
	InputPath string `json:"input_path" yaml:"input_path"`

	// OutputPath is the annotated CSV written by the pass.
	OutputPath string `json:"output_path" yaml:"output_path"`
}

// CatalogConfig holds settings for the catalog stage.
type CatalogConfig struct {
	// Dir is the directory holding the catalog database.
	Dir string `json:"dir" yaml:"dir"`

	// MaxResults is the default maximum number of search results (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	Harvest    HarvestConfig    `json:"harvest" yaml:"harvest"`
	Annotation AnnotationConfig `json:"annotation" yaml:"annotation"`
	Catalog    CatalogConfig    `json:"catalog" yaml:"catalog"`
}
