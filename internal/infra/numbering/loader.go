package numbering

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
)

//go:embed plan.yaml
var defaultPlan []byte

type planDocument struct {
	Version   string           `mapstructure:"version"`
	Countries []domain.Country `mapstructure:"countries"`
}

// Default returns the plan shipped with the binary.
func Default() (*Plan, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaultPlan)); err != nil {
		return nil, fmt.Errorf("numbering: read embedded plan: %w", err)
	}
	return fromViper(v)
}

// Load reads a plan from a YAML or JSON file. An empty path yields the
// embedded plan.
func Load(path string) (*Plan, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("numbering: read plan %s: %w", path, err)
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Plan, error) {
	var doc planDocument
	if err := v.Unmarshal(&doc); err != nil {
		return nil, fmt.Errorf("numbering: decode plan: %w", err)
	}
	return NewPlan(doc.Version, doc.Countries)
}
