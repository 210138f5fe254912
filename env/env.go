package env

import (
	"context"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/iconduit/go-iconduit/service/logger"
	"github.com/spf13/viper"
)

var validators = map[string][]string{}

var v = validator.New()

var validatorsMu = &sync.Mutex{}

// RegisterValidation attaches validator/v10 tags to an env var name; the tags
// are checked on every read.
func RegisterValidation(name string, tags ...string) {
	validatorsMu.Lock()
	defer validatorsMu.Unlock()
	validators[name] = append(validators[name], tags...)
}

func Get[T any](ctx context.Context, name string) T {
	func() {
		validatorsMu.Lock()
		defer validatorsMu.Unlock()
		for _, tag := range validators[name] {
			if err := v.Var(viper.Get(name), tag); err != nil {
				logger.For(ctx).Errorf("invalid env var: %s, tag: %s, err: %s", name, tag, err.Error())
			}
		}
	}()

	if !viper.IsSet(name) {
		return *new(T)
	}

	it, ok := viper.Get(name).(T)
	if !ok {
		logger.For(ctx).Errorf("invalid env var: %s, expected type: %T", name, it)
		return *new(T)
	}

	return it
}

func GetString(name string) string {
	return viper.GetString(name)
}

func GetInt(name string) int {
	return viper.GetInt(name)
}

func GetBool(name string) bool {
	return viper.GetBool(name)
}
