package shared

import (
    "errors"
    "fmt"
    "io/ioutil"

    "gopkg.in/yaml.v2"

    . "github.com/PelionIoT/dbsync/logging"
)

type YAMLServerConfig struct {
    DBFile string `yaml:"db"`
    Host string `yaml:"host"`
    Port int `yaml:"port"`
    AppNamespace string `yaml:"appNamespace"`
    Primary *YAMLPrimary `yaml:"primary"`
    LogLevel string `yaml:"logLevel"`
}

// YAMLPrimary is present only on replica instances. Which instance is the
// primary is decided outside this process; the config just names it.
type YAMLPrimary struct {
    InstanceID string `yaml:"instanceId"`
    PingIntervalSeconds int `yaml:"pingInterval"`
}

func (ysc *YAMLServerConfig) LoadFromFile(file string) error {
    rawConfig, err := ioutil.ReadFile(file)

    if err != nil {
        return err
    }

    err = yaml.Unmarshal(rawConfig, ysc)

    if err != nil {
        return err
    }

    if err := ysc.Validate(); err != nil {
        return err
    }

    SetLoggingLevel(ysc.LogLevel)

    return nil
}

func (ysc *YAMLServerConfig) Validate() error {
    if len(ysc.DBFile) == 0 {
        return errors.New("No db file specified")
    }

    if !isValidPort(ysc.Port) {
        return errors.New(fmt.Sprintf("%d is an invalid port for the sync server", ysc.Port))
    }

    if ysc.Primary != nil {
        if len(ysc.Primary.InstanceID) == 0 {
            return errors.New("The primary instance id is empty")
        }

        if ysc.Primary.PingIntervalSeconds < 0 {
            return errors.New("The primary ping interval must be positive")
        }

        if ysc.Primary.PingIntervalSeconds == 0 {
            ysc.Primary.PingIntervalSeconds = 1
        }
    }

    return nil
}

func isValidPort(p int) bool {
    return p > 0 && p < (1 << 16)
}
