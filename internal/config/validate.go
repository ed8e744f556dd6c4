package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// maxBatchSize is the most jobs one remote batch create accepts.
const maxBatchSize = 200

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// NormalizeAndValidate fills unset values with defaults and returns the normalized copy.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	out := cfg
	var res Validation
	def := Default()

	out.Project.ID = strings.TrimSpace(out.Project.ID)
	out.Project.TenantID = strings.TrimSpace(out.Project.TenantID)
	out.Project.DefaultLanguage = strings.TrimSpace(out.Project.DefaultLanguage)
	out.App.LogLevel = strings.ToLower(strings.TrimSpace(out.App.LogLevel))

	if out.Project.DefaultLanguage == "" {
		out.Project.DefaultLanguage = def.Project.DefaultLanguage
	}
	if out.App.LogLevel == "" {
		out.App.LogLevel = def.App.LogLevel
	}
	if out.Project.KeyringAccount == "" {
		out.Project.KeyringAccount = def.Project.KeyringAccount
	}
	if out.Batch.Size == 0 {
		out.Batch.Size = def.Batch.Size
	}
	if out.Batch.ConcurrentBatches == 0 {
		out.Batch.ConcurrentBatches = def.Batch.ConcurrentBatches
	}
	if out.Batch.PollInterval == 0 {
		out.Batch.PollInterval = def.Batch.PollInterval
	}
	if out.Batch.MaxPollWait == 0 {
		out.Batch.MaxPollWait = def.Batch.MaxPollWait
	}

	// ---- Validation rules ----

	if out.Project.ID == "" {
		res.addErr("project.id is required")
	}
	if strings.ContainsAny(out.Project.ID, "/ ") {
		res.addErr("project.id %q must not contain slashes or spaces", out.Project.ID)
	}

	switch out.App.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		res.addErr("app.log_level must be one of debug, info, warn, error (got %q)", out.App.LogLevel)
	}
	if out.App.Port <= 0 || out.App.Port > 65535 {
		res.addErr("app.port must be 1..65535")
	}

	if f := out.Project.CredentialsFile; f != "" {
		if _, err := os.Stat(f); err != nil {
			res.addErr("project.credentials_file %q is not readable: %v", f, err)
		}
	}

	if out.Batch.Size < 0 || out.Batch.Size > maxBatchSize {
		res.addErr("batch.size must be 1..%d (got %d)", maxBatchSize, out.Batch.Size)
	}
	if out.Batch.ConcurrentBatches < 0 {
		res.addErr("batch.concurrent_batches must be > 0")
	} else if out.Batch.ConcurrentBatches > 20 {
		res.addWarn("batch.concurrent_batches is high (%d) and may hit API quotas.", out.Batch.ConcurrentBatches)
	}
	if out.Batch.APIQPSLimit < 0 {
		res.addErr("batch.api_qps_limit must be >= 0")
	} else if out.Batch.APIQPSLimit == 0 {
		res.addWarn("batch.api_qps_limit is 0; remote calls are not rate limited.")
	}
	if out.Batch.PollInterval < 0 || out.Batch.MaxPollWait < 0 {
		res.addErr("batch.poll_interval and batch.max_poll_wait must be positive")
	} else if out.Batch.PollInterval > out.Batch.MaxPollWait {
		res.addErr("batch.poll_interval (%s) exceeds batch.max_poll_wait (%s)", out.Batch.PollInterval, out.Batch.MaxPollWait)
	}

	if out.Sync.AuditInterval < 0 {
		res.addErr("sync.audit_interval must be >= 0")
	} else if out.Sync.AuditInterval > 0 && out.Sync.AuditInterval < time.Minute {
		res.addWarn("sync.audit_interval is very low (%s); every audit gets each mirrored entity.", out.Sync.AuditInterval)
	}
	if out.Sync.PruneMissing && out.Sync.AuditInterval == 0 {
		res.addWarn("sync.prune_missing only applies to `ctsmirror sync` while sync.audit_interval is 0.")
	}

	return out, res
}
