package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/labstack/gommon/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eringen/pubfeed"
)

// cli carries the state shared by every subcommand.
type cli struct {
	cfgFile  string
	envFile  string
	logLevel string

	v      *viper.Viper
	logger *log.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:   "pubfeed",
		Short: "pubfeed - RSS feeds with working images for markdown sites",
		Long: `pubfeed renders a markdown content collection into an RSS feed.
Images referenced by posts are located in the content tree, optimized, and
rewritten to absolute URLs so feed readers can display them.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "new" || cmd.Name() == "version" {
				return nil
			}
			return c.initialize()
		},
	}

	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (default is ./pubfeed.yaml)")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded before the config")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		c.newBuildCmd(),
		c.newServeCmd(),
		newNewCmd(),
		newVersionCmd(),
	)
	return root
}

func (c *cli) initialize() error {
	if err := godotenv.Load(c.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", c.envFile, err)
	}

	setDefaults(c.v)

	if c.cfgFile != "" {
		c.v.SetConfigFile(c.cfgFile)
	} else {
		c.v.AddConfigPath(".")
		c.v.SetConfigName("pubfeed")
		c.v.SetConfigType("yaml")
	}

	c.v.SetEnvPrefix("PUBFEED")
	c.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	c.v.AutomaticEnv()

	if err := c.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		if c.cfgFile != "" {
			return fmt.Errorf("config file %s not found: %w", c.cfgFile, err)
		}
	}

	c.logger = log.New("pubfeed")
	c.logger.SetHeader("${time_rfc3339} ${level} ${prefix}")
	c.logger.SetOutput(os.Stderr)
	level := c.logLevel
	if level == "" {
		level = c.v.GetString("log_level")
	}
	c.logger.SetLevel(parseLevel(level))
	if used := c.v.ConfigFileUsed(); used != "" {
		c.logger.Infof("using config file %s", used)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("site.name", "")
	v.SetDefault("site.url", "")
	v.SetDefault("site.description", "")
	v.SetDefault("site.lang", "")
	v.SetDefault("site.custom_data", "")
	v.SetDefault("content.dir", "")
	v.SetDefault("content.root", "")
	v.SetDefault("content.collection", "")
	v.SetDefault("content.public", "")
	v.SetDefault("images.output", "")
	v.SetDefault("images.prefix", "")
	v.SetDefault("images.database", "")
	v.SetDefault("images.max_width", 0)
	v.SetDefault("images.quality", 0)
	v.SetDefault("images.max_pixels", 0)
	v.SetDefault("server.addr", "")
	v.SetDefault("server.cache_ttl", "0s")
	v.SetDefault("server.rate_limit", 0)
	v.SetDefault("server.concurrency", 0)
	v.SetDefault("server.watch", false)
}

// siteConfig maps the viper keys onto pubfeed.SiteConfig. Empty values are
// filled in by pubfeed.New.
func (c *cli) siteConfig() pubfeed.SiteConfig {
	v := c.v
	return pubfeed.SiteConfig{
		Name:           v.GetString("site.name"),
		URL:            v.GetString("site.url"),
		Description:    v.GetString("site.description"),
		Lang:           v.GetString("site.lang"),
		CustomData:     v.GetString("site.custom_data"),
		ContentDir:     v.GetString("content.dir"),
		ContentRoot:    v.GetString("content.root"),
		Collection:     v.GetString("content.collection"),
		PublicDir:      v.GetString("content.public"),
		OutputDir:      v.GetString("images.output"),
		OutputPrefix:   v.GetString("images.prefix"),
		DatabasePath:   v.GetString("images.database"),
		MaxImageWidth:  v.GetInt("images.max_width"),
		ImageQuality:   v.GetInt("images.quality"),
		MaxImagePixels: v.GetInt("images.max_pixels"),
		Addr:           v.GetString("server.addr"),
		FeedCacheTTL:   v.GetDuration("server.cache_ttl"),
		FeedRateLimit:  v.GetInt("server.rate_limit"),
		Concurrency:    v.GetInt("server.concurrency"),
		Watch:          v.GetBool("server.watch"),
	}
}

func (c *cli) newApp() *pubfeed.App {
	app := pubfeed.New(c.siteConfig(), pubfeed.WithLogger(c.logger))
	app.Echo.Logger = c.logger
	return app
}

func parseLevel(s string) log.Lvl {
	switch strings.ToLower(s) {
	case "debug":
		return log.DEBUG
	case "warn", "warning":
		return log.WARN
	case "error":
		return log.ERROR
	case "off":
		return log.OFF
	default:
		return log.INFO
	}
}
