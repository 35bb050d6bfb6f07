package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	cmtcfg "github.com/cometbft/cometbft/config"
)

var appTemplate *template.Template

func init() {
	var err error
	tmpl := template.New("appConfigTemplate").Funcs(template.FuncMap{
		"StringsJoin": strings.Join,
		"Quote": func(ss []string) []string {
			out := make([]string, len(ss))
			for i, s := range ss {
				out[i] = fmt.Sprintf("%q", s)
			}
			return out
		},
	})
	if appTemplate, err = tmpl.Parse(defaultAppTemplate); err != nil {
		panic(err)
	}
}

// WriteConfigFile writes the CometBFT sections followed by the [surety]
// section to configFilePath.
func WriteConfigFile(configFilePath string, config *Config) error {
	cmtcfg.WriteConfigFile(configFilePath, config.Config)

	var buffer bytes.Buffer
	if err := appTemplate.Execute(&buffer, config.App); err != nil {
		return err
	}
	f, err := os.OpenFile(configFilePath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(buffer.Bytes())
	return err
}

// Note: any changes to the comments/variables/mapstructure
// must be reflected in SuretyAppConfig in config/config.go.
//
//go:embed app.toml.tpl
var defaultAppTemplate string
