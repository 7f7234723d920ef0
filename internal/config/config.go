// Package config resolves the streamer's settings from flags and environment
// variables and validates them before anything starts.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/parchment-io/k8s-events-to-slack-streamer/internal/filter"
	"github.com/parchment-io/k8s-events-to-slack-streamer/internal/formatter"
	"github.com/parchment-io/k8s-events-to-slack-streamer/internal/notifier"
	"github.com/parchment-io/k8s-events-to-slack-streamer/internal/util"
)

// EnvPrefix prefixes every environment variable the streamer reads.
const EnvPrefix = "K8S_EVENTS_STREAMER"

// Setting keys. Each is also the flag name.
const (
	KeyClusterName               = "cluster-name"
	KeyNamespace                 = "namespace"
	KeySkipDeleteEvents          = "skip-delete-events"
	KeyReasonsToSkip             = "reasons-to-skip"
	KeyUsersToNotify             = "users-to-notify"
	KeyWebhookURL                = "webhook-url"
	KeyEntityBlacklist           = "entity-blacklist"
	KeyDebug                     = "debug"
	KeyBackoff                   = "backoff"
	KeyWebhookTimeout            = "webhook-timeout"
	KeyWebhookInsecureSkipVerify = "webhook-insecure-skip-verify"
	KeyAsyncDelivery             = "async-delivery"
	KeyMetricsBindAddress        = "metrics-bind-address"
)

type setting struct {
	key   string
	env   string
	def   any
	usage string
}

// settings lists every key with its environment variable. The variable names
// predate the flags and are kept as deployed manifests use them.
var settings = []setting{
	{KeyClusterName, "CLUSTER_NAME", "", "Cluster name shown in every message (required)."},
	{KeyNamespace, "NAMESPACE", "default", "Namespace whose events are streamed."},
	{KeySkipDeleteEvents, "SKIP_DELETE_EVENTS", false, "Do not forward DELETED events."},
	{KeyReasonsToSkip, "LIST_OF_REASONS_TO_SKIP", "", "Space-separated event reasons to suppress."},
	{KeyUsersToNotify, "USERS_TO_NOTIFY", "", "Space-separated mentions that replace the text of warning messages."},
	{KeyWebhookURL, "INCOMING_WEB_HOOK_URL", "", "Slack incoming webhook URL (required)."},
	{KeyEntityBlacklist, "ENTITY_BLACKLIST", "", "Space-separated regular expressions; events whose name matches any are suppressed."},
	{KeyDebug, "DEBUG", false, "Enable debug logging."},
	{KeyBackoff, "BACKOFF", 30 * time.Second, "Wait between the end of a watch and the next one."},
	{KeyWebhookTimeout, "WEBHOOK_TIMEOUT", 10 * time.Second, "Webhook HTTP request timeout."},
	{KeyWebhookInsecureSkipVerify, "WEBHOOK_INSECURE_SKIP_VERIFY", false, "Disable TLS certificate verification for the webhook (insecure)."},
	{KeyAsyncDelivery, "ASYNC_DELIVERY", false, "Deliver notifications from a background queue instead of the watch loop."},
	{KeyMetricsBindAddress, "METRICS_BIND_ADDRESS", ":8080", "Address for /metrics, /healthz and /readyz. Empty disables."},
}

// EnvName returns the environment variable backing key.
func EnvName(key string) string {
	for _, s := range settings {
		if s.key == key {
			return EnvPrefix + "_" + s.env
		}
	}
	return ""
}

// Config is the validated streamer configuration.
type Config struct {
	ClusterName               string
	Namespace                 string
	SkipDeleteEvents          bool
	ReasonsToSkip             []string
	UsersToNotify             []string
	WebhookURL                string
	EntityBlacklist           []string
	Debug                     bool
	Backoff                   time.Duration
	WebhookTimeout            time.Duration
	WebhookInsecureSkipVerify bool
	AsyncDelivery             bool
	MetricsBindAddress        string
}

// MissingSettingError reports a required setting that is unset or empty.
type MissingSettingError struct {
	Key string
}

func (e *MissingSettingError) Error() string {
	return fmt.Sprintf("%s (--%s) is not defined or set to empty string. Set it to non-empty string and try again",
		EnvName(e.Key), e.Key)
}

// BindFlags registers every setting on fs and binds fs and the environment
// to v.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, s := range settings {
		switch def := s.def.(type) {
		case string:
			fs.String(s.key, def, s.usage)
		case bool:
			fs.String(s.key, "", s.usage)
			fs.Lookup(s.key).NoOptDefVal = "true"
		case time.Duration:
			fs.Duration(s.key, def, s.usage)
		}
		if err := v.BindEnv(s.key, EnvPrefix+"_"+s.env); err != nil {
			return fmt.Errorf("bind env %s: %w", s.env, err)
		}
		v.SetDefault(s.key, s.def)
	}
	return v.BindPFlags(fs)
}

// Load reads and validates the configuration from v.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		ClusterName:               strings.TrimSpace(v.GetString(KeyClusterName)),
		Namespace:                 strings.TrimSpace(v.GetString(KeyNamespace)),
		SkipDeleteEvents:          parseSwitch(v.GetString(KeySkipDeleteEvents)),
		ReasonsToSkip:             util.SplitFields(v.GetString(KeyReasonsToSkip)),
		UsersToNotify:             util.SplitFields(v.GetString(KeyUsersToNotify)),
		WebhookURL:                strings.TrimSpace(v.GetString(KeyWebhookURL)),
		EntityBlacklist:           util.SplitFields(v.GetString(KeyEntityBlacklist)),
		Debug:                     parseSwitch(v.GetString(KeyDebug)),
		Backoff:                   v.GetDuration(KeyBackoff),
		WebhookTimeout:            v.GetDuration(KeyWebhookTimeout),
		WebhookInsecureSkipVerify: parseSwitch(v.GetString(KeyWebhookInsecureSkipVerify)),
		AsyncDelivery:             parseSwitch(v.GetString(KeyAsyncDelivery)),
		MetricsBindAddress:        strings.TrimSpace(v.GetString(KeyMetricsBindAddress)),
	}

	if cfg.ClusterName == "" {
		return Config{}, &MissingSettingError{Key: KeyClusterName}
	}
	if cfg.WebhookURL == "" {
		return Config{}, &MissingSettingError{Key: KeyWebhookURL}
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "default"
	}
	if cfg.Backoff <= 0 {
		return Config{}, fmt.Errorf("%s must be a positive duration, got %s", EnvName(KeyBackoff), cfg.Backoff)
	}
	if cfg.WebhookTimeout <= 0 {
		return Config{}, fmt.Errorf("%s must be a positive duration, got %s", EnvName(KeyWebhookTimeout), cfg.WebhookTimeout)
	}
	if _, err := cfg.FilterConfig(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", EnvName(KeyEntityBlacklist), err)
	}
	return cfg, nil
}

// FilterConfig builds the filter rules.
func (c Config) FilterConfig() (filter.Config, error) {
	return filter.NewConfig(c.SkipDeleteEvents, c.ReasonsToSkip, c.EntityBlacklist)
}

// DeliveryConfig builds the message addressing.
func (c Config) DeliveryConfig() formatter.DeliveryConfig {
	return formatter.DeliveryConfig{
		WebhookURL:   c.WebhookURL,
		ClusterName:  c.ClusterName,
		NotifyTarget: strings.Join(c.UsersToNotify, " "),
	}
}

// WebhookSenderConfig builds the webhook client settings.
func (c Config) WebhookSenderConfig() notifier.WebhookSenderConfig {
	return notifier.WebhookSenderConfig{
		URL:                c.WebhookURL,
		Timeout:            c.WebhookTimeout,
		InsecureSkipVerify: c.WebhookInsecureSkipVerify,
	}
}

// parseSwitch treats any non-empty value as enabled, except the usual
// spellings of false.
func parseSwitch(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "false", "0", "no", "off":
		return false
	default:
		return true
	}
}
