package main

import (
	"context"
	"flag"
	"os"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/google/subcommands"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shiena/ansicolor"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

var (
	cf      string
	verbose bool
)

func init() {
	flag.StringVar(&cf, "c", "conf.toml", "set config `file`")
	flag.BoolVar(&verbose, "v", false, "debug logging")
	log.SetFormatter(&nested.Formatter{
		HideKeys:        true,
		ShowFullLevel:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	log.SetOutput(ansicolor.NewAnsiColorWriter(os.Stdout))
}

func initConf(cfgFile string) {
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		log.Debugf("config file(%s) not exist, using defaults", cfgFile)
	}
	viper.SetConfigType("toml")
	viper.SetConfigFile(cfgFile)
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		log.Debugf("read config file(%s) error, details: %s", viper.ConfigFileUsed(), err)
	}
	viper.SetDefault("pyramid.cachesize", 256)
	viper.SetDefault("pyramid.persistentlevels", 4)
	viper.SetDefault("pyramid.maxzoom", 22)
	viper.SetDefault("pyramid.tilesize", 256)
	viper.SetDefault("view.width", 1024)
	viper.SetDefault("view.height", 768)
	viper.SetDefault("pan.steps", 64)
}

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(&panCmd{}, "")
	subcommands.Register(&warmCmd{}, "")

	flag.Parse()
	if verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
	initConf(cf)
	os.Exit(int(subcommands.Execute(context.Background())))
}
