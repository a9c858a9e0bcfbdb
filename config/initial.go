package config

import (
	"fmt"
	"os"

	C "github.com/Dreamacro/clash-dashboard/constant"
	"github.com/Dreamacro/clash-dashboard/log"
)

const defaultConfig = `external-controller: 127.0.0.1:9091
controller:
  url: http://127.0.0.1:9090
`

// Init prepare necessary files
func Init(dir string) error {
	// initial homedir
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o777); err != nil {
			return fmt.Errorf("can't create config directory %s: %s", dir, err.Error())
		}
	}

	// initial config.yaml
	if _, err := os.Stat(C.Path.Config()); os.IsNotExist(err) {
		log.Infoln("Can't find config, create a initial config file")
		f, err := os.OpenFile(C.Path.Config(), os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("can't create file %s: %s", C.Path.Config(), err.Error())
		}
		defer f.Close()
		if _, err := f.WriteString(defaultConfig); err != nil {
			return err
		}
	}

	return nil
}
