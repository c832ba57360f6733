package notifiers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	// Supported notifier types.
	TypeEmail    = "email"
	TypeTelegram = "telegram"
	TypeHTTP     = "http"
	TypeSQS      = "sqs"
	TypeSNS      = "sns"
	TypePubSub   = "pubsub"

	httpDefaultMethod         = "POST"
	httpDefaultTimeoutSeconds = 5

	telegramDefaultBaseURL        = "https://api.telegram.org"
	telegramDefaultTimeoutSeconds = 10

	emailDefaultPort     = 465
	emailDefaultFromName = "Notice Bot"
	emailDefaultSubject  = "📢 Notice Update"
)

// configFile represents the structure of the notifiers configuration file.
type configFile struct {
	Notifiers []NotifierConfig `json:"notifiers" yaml:"notifiers"`
}

// NotifierConfig represents a single notifier entry declared in config files.
type NotifierConfig struct {
	ID      string `json:"id" yaml:"id"`
	Type    string `json:"type" yaml:"type"`
	Enabled *bool  `json:"enabled" yaml:"enabled"`
	// InTesting keeps a recipient-less channel (http, sqs, sns, pubsub) active in testing mode.
	InTesting bool `json:"in_testing" yaml:"in_testing"`

	Email    *EmailNotifierConfig    `json:"email" yaml:"email"`
	Telegram *TelegramNotifierConfig `json:"telegram" yaml:"telegram"`
	HTTP     *HTTPNotifierConfig     `json:"http" yaml:"http"`
	SQS      *SQSNotifierConfig      `json:"sqs" yaml:"sqs"`
	SNS      *SNSNotifierConfig      `json:"sns" yaml:"sns"`
	PubSub   *PubSubNotifierConfig   `json:"pubsub" yaml:"pubsub"`
}

// EmailNotifierConfig holds SMTP settings and recipients.
type EmailNotifierConfig struct {
	Host               string   `json:"host" yaml:"host"`
	Port               int      `json:"port" yaml:"port"`
	Username           string   `json:"username" yaml:"username"`
	Password           string   `json:"password" yaml:"password"`
	TLSMode            string   `json:"tls_mode" yaml:"tls_mode"`
	InsecureSkipVerify bool     `json:"insecure_skip_verify" yaml:"insecure_skip_verify"`
	From               string   `json:"from" yaml:"from"`
	FromName           string   `json:"from_name" yaml:"from_name"`
	Subject            string   `json:"subject" yaml:"subject"`
	Recipients         []string `json:"recipients" yaml:"recipients"`
	TestRecipients     []string `json:"test_recipients" yaml:"test_recipients"`
}

// TelegramNotifierConfig holds Bot API settings and chat ids.
type TelegramNotifierConfig struct {
	Token          string   `json:"token" yaml:"token"`
	ChatIDs        []string `json:"chat_ids" yaml:"chat_ids"`
	TestChatIDs    []string `json:"test_chat_ids" yaml:"test_chat_ids"`
	BaseURL        string   `json:"base_url" yaml:"base_url"`
	TimeoutSeconds int      `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// HTTPNotifierConfig holds generic webhook settings.
type HTTPNotifierConfig struct {
	URL            string            `json:"url" yaml:"url"`
	Method         string            `json:"method" yaml:"method"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// AWSCredentials optionally pins static credentials instead of the default chain.
type AWSCredentials struct {
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
	SessionToken    string `json:"session_token" yaml:"session_token"`
}

// SQSNotifierConfig holds AWS SQS specific settings.
type SQSNotifierConfig struct {
	QueueURL       string `json:"uri" yaml:"uri"`
	Region         string `json:"region" yaml:"region"`
	Endpoint       string `json:"endpoint" yaml:"endpoint"`
	AWSCredentials `json:",inline" yaml:",inline"`
}

// SNSNotifierConfig holds AWS SNS specific settings.
type SNSNotifierConfig struct {
	TopicARN       string `json:"topic_arn" yaml:"topic_arn"`
	Region         string `json:"region" yaml:"region"`
	Endpoint       string `json:"endpoint" yaml:"endpoint"`
	AWSCredentials `json:",inline" yaml:",inline"`
}

// PubSubNotifierConfig holds Google Cloud Pub/Sub settings.
type PubSubNotifierConfig struct {
	ProjectID       string `json:"project_id" yaml:"project_id"`
	Topic           string `json:"topic" yaml:"topic"`
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
}

// ConfigRegistry materializes notifier definitions loaded from config files.
type ConfigRegistry struct {
	mu        sync.RWMutex
	notifiers []NotifierConfig
	idx       map[string]NotifierConfig
}

// LoadRegistry loads the notifier registry from a YAML/JSON file. ${VAR}
// references are expanded from the environment before decoding so secrets
// can stay in .env.
func LoadRegistry(path string) (*ConfigRegistry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("notifiers file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open notifiers file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read notifiers file: %w", err)
	}
	raw = []byte(os.ExpandEnv(string(raw)))

	fileReg, err := parseNotifierRegistry(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(fileReg.Notifiers) == 0 {
		return nil, errors.New("notifiers file contains no notifiers entries")
	}

	reg := &ConfigRegistry{
		notifiers: make([]NotifierConfig, len(fileReg.Notifiers)),
		idx:       make(map[string]NotifierConfig, len(fileReg.Notifiers)),
	}

	for i := range fileReg.Notifiers {
		cfg := sanitizeNotifierConfig(fileReg.Notifiers[i])
		if err := validateNotifierConfig(cfg); err != nil {
			return nil, fmt.Errorf("notifiers[%d]: %w", i, err)
		}
		if _, exists := reg.idx[cfg.ID]; exists {
			return nil, fmt.Errorf("duplicate notifier id %q", cfg.ID)
		}
		reg.notifiers[i] = cfg
		reg.idx[cfg.ID] = cfg
	}

	return reg, nil
}

// parseNotifierRegistry attempts to decode the notifiers file content.
func parseNotifierRegistry(data []byte, ext string) (configFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	decoders := []struct {
		name string
		ext  string
		fn   func([]byte, any) error
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		if reg, err := unmarshalNotifierRegistry(d.name, data, d.fn); err == nil {
			return reg, nil
		}
	}

	return configFile{}, errors.New("notifiers file format not recognized (expected YAML or JSON)")
}

// unmarshalNotifierRegistry decodes the notifiers file using the provided function.
func unmarshalNotifierRegistry(name string, data []byte, fn func([]byte, any) error) (configFile, error) {
	var reg configFile
	if err := fn(data, &reg); err != nil {
		return configFile{}, fmt.Errorf("decode %s notifiers: %w", name, err)
	}
	return reg, nil
}

// sanitizeNotifierConfig trims and normalizes the notifier config fields.
func sanitizeNotifierConfig(cfg NotifierConfig) NotifierConfig {
	cfg.ID = strings.TrimSpace(cfg.ID)
	cfg.Type = strings.ToLower(strings.TrimSpace(cfg.Type))

	if cfg.Enabled == nil {
		def := true
		cfg.Enabled = &def
	}
	if cfg.Email != nil {
		c := *cfg.Email
		c.Host = strings.TrimSpace(c.Host)
		c.Username = strings.TrimSpace(c.Username)
		c.From = strings.TrimSpace(c.From)
		if c.From == "" {
			c.From = c.Username
		}
		c.FromName = strings.TrimSpace(c.FromName)
		if c.FromName == "" {
			c.FromName = emailDefaultFromName
		}
		if strings.TrimSpace(c.Subject) == "" {
			c.Subject = emailDefaultSubject
		}
		if c.Port <= 0 {
			c.Port = emailDefaultPort
		}
		c.Recipients = sanitizeList(c.Recipients)
		c.TestRecipients = sanitizeList(c.TestRecipients)
		cfg.Email = &c
	}
	if cfg.Telegram != nil {
		c := *cfg.Telegram
		c.Token = strings.TrimSpace(c.Token)
		c.ChatIDs = sanitizeList(c.ChatIDs)
		c.TestChatIDs = sanitizeList(c.TestChatIDs)
		c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
		if c.BaseURL == "" {
			c.BaseURL = telegramDefaultBaseURL
		}
		if c.TimeoutSeconds <= 0 {
			c.TimeoutSeconds = telegramDefaultTimeoutSeconds
		}
		cfg.Telegram = &c
	}
	if cfg.HTTP != nil {
		c := *cfg.HTTP
		c.URL = strings.TrimSpace(c.URL)
		c.Method = strings.ToUpper(strings.TrimSpace(c.Method))
		if c.Method == "" {
			c.Method = httpDefaultMethod
		}
		c.Headers = sanitizeHeaders(c.Headers)
		if c.TimeoutSeconds <= 0 {
			c.TimeoutSeconds = httpDefaultTimeoutSeconds
		}
		cfg.HTTP = &c
	}
	if cfg.SQS != nil {
		c := *cfg.SQS
		c.QueueURL = strings.TrimSpace(c.QueueURL)
		c.Region = strings.TrimSpace(c.Region)
		c.Endpoint = strings.TrimSpace(c.Endpoint)
		cfg.SQS = &c
	}
	if cfg.SNS != nil {
		c := *cfg.SNS
		c.TopicARN = strings.TrimSpace(c.TopicARN)
		c.Region = strings.TrimSpace(c.Region)
		c.Endpoint = strings.TrimSpace(c.Endpoint)
		cfg.SNS = &c
	}
	if cfg.PubSub != nil {
		c := *cfg.PubSub
		c.ProjectID = strings.TrimSpace(c.ProjectID)
		c.Topic = strings.TrimSpace(c.Topic)
		c.CredentialsFile = strings.TrimSpace(c.CredentialsFile)
		c.Endpoint = strings.TrimSpace(c.Endpoint)
		cfg.PubSub = &c
	}

	return cfg
}

// sanitizeList trims entries, splits comma-separated values and drops blanks.
func sanitizeList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// sanitizeHeaders trims and removes empty headers.
func sanitizeHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		key := strings.TrimSpace(k)
		val := strings.TrimSpace(v)
		if key == "" || val == "" {
			continue
		}
		out[key] = val
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// validateNotifierConfig checks that required fields are present.
func validateNotifierConfig(cfg NotifierConfig) error {
	if cfg.ID == "" {
		return errors.New("id is required")
	}
	switch cfg.Type {
	case "":
		return fmt.Errorf("type is required for notifier %q", cfg.ID)
	case TypeEmail:
		if cfg.Email == nil {
			return fmt.Errorf("email config required for notifier %q", cfg.ID)
		}
		if cfg.Email.Host == "" {
			return fmt.Errorf("email.host is required for notifier %q", cfg.ID)
		}
		if cfg.Email.From == "" {
			return fmt.Errorf("email.from or email.username is required for notifier %q", cfg.ID)
		}
		if len(cfg.Email.Recipients) == 0 {
			return fmt.Errorf("email.recipients is required for notifier %q", cfg.ID)
		}
	case TypeTelegram:
		if cfg.Telegram == nil {
			return fmt.Errorf("telegram config required for notifier %q", cfg.ID)
		}
		if cfg.Telegram.Token == "" {
			return fmt.Errorf("telegram.token is required for notifier %q", cfg.ID)
		}
		if len(cfg.Telegram.ChatIDs) == 0 {
			return fmt.Errorf("telegram.chat_ids is required for notifier %q", cfg.ID)
		}
	case TypeHTTP:
		if cfg.HTTP == nil {
			return fmt.Errorf("http config required for notifier %q", cfg.ID)
		}
		if cfg.HTTP.URL == "" {
			return fmt.Errorf("http.url is required for notifier %q", cfg.ID)
		}
	case TypeSQS:
		if cfg.SQS == nil {
			return fmt.Errorf("sqs config required for notifier %q", cfg.ID)
		}
		if cfg.SQS.QueueURL == "" {
			return fmt.Errorf("sqs.uri is required for notifier %q", cfg.ID)
		}
		if cfg.SQS.Region == "" {
			return fmt.Errorf("sqs.region is required for notifier %q", cfg.ID)
		}
	case TypeSNS:
		if cfg.SNS == nil {
			return fmt.Errorf("sns config required for notifier %q", cfg.ID)
		}
		if cfg.SNS.TopicARN == "" {
			return fmt.Errorf("sns.topic_arn is required for notifier %q", cfg.ID)
		}
		if cfg.SNS.Region == "" {
			return fmt.Errorf("sns.region is required for notifier %q", cfg.ID)
		}
	case TypePubSub:
		if cfg.PubSub == nil {
			return fmt.Errorf("pubsub config required for notifier %q", cfg.ID)
		}
		if cfg.PubSub.ProjectID == "" || cfg.PubSub.Topic == "" {
			return fmt.Errorf("pubsub.project_id and pubsub.topic are required for notifier %q", cfg.ID)
		}
	}
	return nil
}

// ByID returns the notifier config by id.
func (r *ConfigRegistry) ByID(id string) (NotifierConfig, bool) {
	if r == nil {
		return NotifierConfig{}, false
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return NotifierConfig{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.idx[id]
	return cfg, ok
}

// All returns all configured notifiers.
func (r *ConfigRegistry) All() []NotifierConfig {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]NotifierConfig, len(r.notifiers))
	copy(out, r.notifiers)
	return out
}

// Enabled returns notifiers that are enabled.
func (r *ConfigRegistry) Enabled() []NotifierConfig {
	if r == nil {
		return nil
	}

	all := r.All()
	if len(all) == 0 {
		return nil
	}

	out := make([]NotifierConfig, 0, len(all))
	for _, cfg := range all {
		if cfg.EnabledValue() {
			out = append(out, cfg)
		}
	}
	return out
}

// ForMode filters cfgs for the run mode. In testing mode email and telegram
// channels stay only when they have test recipients; other channels stay
// only when marked in_testing.
func ForMode(cfgs []NotifierConfig, testing bool) []NotifierConfig {
	if !testing {
		return cfgs
	}
	out := make([]NotifierConfig, 0, len(cfgs))
	for _, cfg := range cfgs {
		switch cfg.Type {
		case TypeEmail:
			if cfg.Email != nil && len(cfg.Email.TestRecipients) > 0 {
				out = append(out, cfg)
			}
		case TypeTelegram:
			if cfg.Telegram != nil && len(cfg.Telegram.TestChatIDs) > 0 {
				out = append(out, cfg)
			}
		default:
			if cfg.InTesting {
				out = append(out, cfg)
			}
		}
	}
	return out
}

// EnabledValue returns enabled flag defaulting to true.
func (cfg NotifierConfig) EnabledValue() bool {
	if cfg.Enabled == nil {
		return true
	}
	return *cfg.Enabled
}
