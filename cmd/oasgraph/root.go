package main

import (
	"fmt"
	"os"

	log "github.com/jensneuse/abstractlogger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "oasgraph",
	Short: "Translate OpenAPI documents into a GraphQL type graph",
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is $HOME/.oasgraph.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}

func initConfig() {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigName(".oasgraph")
		}
	}
	viper.SetEnvPrefix("oasgraph")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "using config file:", viper.ConfigFileUsed())
	}
}

func newLogger() (log.Logger, func()) {
	var zapLogger *zap.Logger
	var err error
	if viper.GetBool("debug") {
		zapLogger, err = zap.NewDevelopment()
	} else {
		zapLogger, err = zap.NewProduction()
	}
	if err != nil {
		return log.NoopLogger, func() {}
	}
	level := log.InfoLevel
	if viper.GetBool("debug") {
		level = log.DebugLevel
	}
	return log.NewZapLogger(zapLogger, level), func() {
		_ = zapLogger.Sync()
	}
}
