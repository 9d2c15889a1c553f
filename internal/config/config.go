package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/irfndi/bidback-engine/internal/calendar"
	"github.com/irfndi/bidback-engine/internal/models"
)

type Config struct {
	Environment string         `mapstructure:"environment"`
	LogLevel    string         `mapstructure:"log_level"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Telegram    TelegramConfig `mapstructure:"telegram"`
	Engine      EngineConfig   `mapstructure:"engine"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token" json:"-" yaml:"-"`
	ChatID   string `mapstructure:"chat_id"`
}

// EngineConfig carries every externally tunable number the engine uses:
// the VIX exit matrix, the holiday table, the signal thresholds, and the
// sizing ceilings. Everything validates at Load; a broken table is fatal
// before any planning call runs.
type EngineConfig struct {
	PortfolioSize float64 `mapstructure:"portfolio_size"`

	Sizing    SizingConfig     `mapstructure:"sizing"`
	Signals   SignalThresholds `mapstructure:"signals"`
	Tracker   TrackerConfig    `mapstructure:"tracker"`
	VixMatrix []VixMatrixRow   `mapstructure:"vix_matrix"`
	Calendar  CalendarConfig   `mapstructure:"calendar"`
}

// SizingConfig holds the breadth multiplier ladder and the position ceiling.
type SizingConfig struct {
	MaxSinglePositionPercent float64 `mapstructure:"max_single_position_percent"`
	MaxPortfolioHeatPercent  float64 `mapstructure:"max_portfolio_heat_percent"`

	WeakMultiplier           float64 `mapstructure:"weak_multiplier"`
	NeutralMultiplier        float64 `mapstructure:"neutral_multiplier"`
	StrongMultiplier         float64 `mapstructure:"strong_multiplier"`
	BigOpportunityMultiplier float64 `mapstructure:"big_opportunity_multiplier"`
}

// SignalThresholds are the BIDBACK rule thresholds for the two override
// flags and the hard-zero floor.
type SignalThresholds struct {
	AvoidEntryMinUp4Pct   int     `mapstructure:"avoid_entry_min_up4pct"`
	AvoidEntryMaxT2108    float64 `mapstructure:"avoid_entry_max_t2108"`
	ZeroSizeUp4Pct        int     `mapstructure:"zero_size_up4pct"`
	BigOppMinUp4Pct       int     `mapstructure:"big_opportunity_min_up4pct"`
	BigOppMaxT2108        float64 `mapstructure:"big_opportunity_max_t2108"`
	StrongBreadthRatio    float64 `mapstructure:"strong_breadth_ratio"`
	WeakBreadthRatio      float64 `mapstructure:"weak_breadth_ratio"`
	ExplosiveBreadthRatio float64 `mapstructure:"explosive_breadth_ratio"`
}

// TrackerConfig tunes the deterioration predicates.
type TrackerConfig struct {
	StopProximityPercent float64 `mapstructure:"stop_proximity_percent"`
	BreadthWindow        int     `mapstructure:"breadth_window"`
}

// VixMatrixRow is the yaml form of one exit-matrix band. The last row marks
// an unbounded band with `max_vix: .inf` (0 is accepted as shorthand).
type VixMatrixRow struct {
	Regime         string  `mapstructure:"regime"`
	MinVix         float64 `mapstructure:"min_vix"`
	MaxVix         float64 `mapstructure:"max_vix"`
	StopLossPct    float64 `mapstructure:"stop_loss_pct"`
	ProfitTarget1  float64 `mapstructure:"profit_target_1_pct"`
	ProfitTarget2  float64 `mapstructure:"profit_target_2_pct"`
	MaxHoldDays    int     `mapstructure:"max_hold_days"`
	SizeMultiplier float64 `mapstructure:"size_multiplier"`
}

// CalendarConfig is the yaml form of the holiday table.
type CalendarConfig struct {
	Version     string   `mapstructure:"version"`
	Closures    []string `mapstructure:"closures"`
	EarlyCloses []string `mapstructure:"early_closes"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.BindEnv("telegram.bot_token", "TELEGRAM_BOT_TOKEN"); err != nil {
		return nil, fmt.Errorf("failed to bind TELEGRAM_BOT_TOKEN environment variable: %w", err)
	}

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Environment = strings.ToLower(config.Environment)

	if err := config.Engine.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the engine tunables, including building and validating
// the configured matrix and holiday table.
func (e *EngineConfig) Validate() error {
	if e.PortfolioSize <= 0 {
		return models.NewConfigurationError("engine", "portfolio_size must be positive")
	}
	if e.Sizing.MaxSinglePositionPercent <= 0 || e.Sizing.MaxSinglePositionPercent > 100 {
		return models.NewConfigurationError("engine.sizing", "max_single_position_percent must be in (0, 100]")
	}
	if e.Sizing.MaxPortfolioHeatPercent <= 0 || e.Sizing.MaxPortfolioHeatPercent > 100 {
		return models.NewConfigurationError("engine.sizing", "max_portfolio_heat_percent must be in (0, 100]")
	}
	if e.Sizing.BigOpportunityMultiplier <= 0 {
		return models.NewConfigurationError("engine.sizing", "big_opportunity_multiplier must be positive")
	}
	if e.Signals.ZeroSizeUp4Pct > e.Signals.AvoidEntryMinUp4Pct {
		return models.NewConfigurationError("engine.signals", "zero_size_up4pct must not exceed avoid_entry_min_up4pct")
	}
	if e.Tracker.StopProximityPercent < 0 {
		return models.NewConfigurationError("engine.tracker", "stop_proximity_percent must not be negative")
	}
	if _, err := e.Matrix(); err != nil {
		return err
	}
	if _, err := e.HolidayTable(); err != nil {
		return err
	}
	return nil
}

// Matrix builds the configured VIX exit matrix, falling back to the stock
// BIDBACK table when no rows are configured.
func (e *EngineConfig) Matrix() (*models.VixExitMatrix, error) {
	if len(e.VixMatrix) == 0 {
		m := models.DefaultVixExitMatrix()
		return m, m.Validate()
	}
	rows := make([]models.VixExitMatrixRow, 0, len(e.VixMatrix))
	for _, r := range e.VixMatrix {
		maxVix := r.MaxVix
		if maxVix == 0 {
			maxVix = math.Inf(1)
		}
		rows = append(rows, models.VixExitMatrixRow{
			Regime:               models.VixRegime(r.Regime),
			MinVix:               r.MinVix,
			MaxVix:               maxVix,
			StopLossPercent:      decimal.NewFromFloat(r.StopLossPct),
			ProfitTarget1Percent: decimal.NewFromFloat(r.ProfitTarget1),
			ProfitTarget2Percent: decimal.NewFromFloat(r.ProfitTarget2),
			MaxHoldDays:          r.MaxHoldDays,
			Multiplier:           decimal.NewFromFloat(r.SizeMultiplier),
		})
	}
	m := &models.VixExitMatrix{Rows: rows}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// HolidayTable builds the configured holiday table, falling back to the
// built-in NYSE table when no closures are configured.
func (e *EngineConfig) HolidayTable() (calendar.HolidayTable, error) {
	if len(e.Calendar.Closures) == 0 && len(e.Calendar.EarlyCloses) == 0 {
		return calendar.DefaultHolidayTable(), nil
	}
	table := calendar.HolidayTable{Version: e.Calendar.Version}
	var err error
	if table.Closures, err = parseDates(e.Calendar.Closures); err != nil {
		return calendar.HolidayTable{}, models.NewConfigurationError("engine.calendar", err.Error())
	}
	if table.EarlyCloses, err = parseDates(e.Calendar.EarlyCloses); err != nil {
		return calendar.HolidayTable{}, models.NewConfigurationError("engine.calendar", err.Error())
	}
	return table, nil
}

func parseDates(days []string) ([]time.Time, error) {
	out := make([]time.Time, 0, len(days))
	for _, d := range days {
		t, err := time.Parse("2006-01-02", d)
		if err != nil {
			return nil, fmt.Errorf("bad calendar date %q: must be YYYY-MM-DD", d)
		}
		out = append(out, t)
	}
	return out, nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "bidback")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.max_conns", 4)

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.chat_id", "")

	viper.SetDefault("engine.portfolio_size", 100000.0)

	viper.SetDefault("engine.sizing.max_single_position_percent", 20.0)
	viper.SetDefault("engine.sizing.max_portfolio_heat_percent", 80.0)
	viper.SetDefault("engine.sizing.weak_multiplier", 0.5)
	viper.SetDefault("engine.sizing.neutral_multiplier", 1.0)
	viper.SetDefault("engine.sizing.strong_multiplier", 1.5)
	viper.SetDefault("engine.sizing.big_opportunity_multiplier", 2.0)

	viper.SetDefault("engine.signals.avoid_entry_min_up4pct", 150)
	viper.SetDefault("engine.signals.avoid_entry_max_t2108", 70.0)
	viper.SetDefault("engine.signals.zero_size_up4pct", 100)
	viper.SetDefault("engine.signals.big_opportunity_min_up4pct", 1000)
	viper.SetDefault("engine.signals.big_opportunity_max_t2108", 30.0)
	viper.SetDefault("engine.signals.weak_breadth_ratio", 0.5)
	viper.SetDefault("engine.signals.strong_breadth_ratio", 1.5)
	viper.SetDefault("engine.signals.explosive_breadth_ratio", 3.0)

	viper.SetDefault("engine.tracker.stop_proximity_percent", 2.0)
	viper.SetDefault("engine.tracker.breadth_window", 5)
}
