package passwordpolicy

import (
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/smallbiznis/identity/internal/config"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Holder keeps the current policy and swaps it when the file changes.
type Holder struct {
	current atomic.Value // holds Policy
}

// NewStaticHolder returns a holder that never reloads.
func NewStaticHolder(p Policy) *Holder {
	h := &Holder{}
	h.current.Store(p)
	return h
}

func NewHolder(cfg config.Config, log *zap.Logger) (*Holder, error) {
	log = log.Named("passwordpolicy")
	v := viper.New()

	if cfg.PasswordPolicyPath != "" {
		v.SetConfigFile(cfg.PasswordPolicyPath)
	} else {
		v.SetConfigName("password_policy")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/identity")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("IDENTITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPolicy()
	v.SetDefault("passwordPolicy.minLength", defaults.MinLength)
	v.SetDefault("passwordPolicy.maxLength", defaults.MaxLength)
	v.SetDefault("passwordPolicy.requireUpperCaseCharacter", defaults.RequireUpperCase)
	v.SetDefault("passwordPolicy.requireLowerCaseCharacter", defaults.RequireLowerCase)
	v.SetDefault("passwordPolicy.requireDigit", defaults.RequireDigit)
	v.SetDefault("passwordPolicy.requireSpecialCharacter", defaults.RequireSpecial)
	v.SetDefault("passwordPolicy.expirePasswordInMonths", defaults.ExpirePasswordMonths)

	watch := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		watch = false
		log.Info("password policy file not found, using defaults")
	}

	var p Policy
	if err := v.UnmarshalKey("passwordPolicy", &p); err != nil {
		return nil, err
	}
	if err := validatePolicy(p); err != nil {
		return nil, err
	}

	holder := NewStaticHolder(p)
	if !watch {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated Policy
		if err := v.UnmarshalKey("passwordPolicy", &updated); err != nil {
			log.Warn("password policy reload failed", zap.Error(err))
			return
		}
		if err := validatePolicy(updated); err != nil {
			log.Warn("invalid password policy ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("password policy reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *Holder) Get() Policy {
	return h.current.Load().(Policy)
}
