package utils

import (
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// logger.go - структурированное логирование на базе zap
//
// Назначение:
// Единая настройка логирования для всех компонентов конвейера.
//
// Использование:
// 1. В main: logger := utils.InitGlobalLogger(cfg)
// 2. В компонентах: log := logger.WithComponent("collector")
// 3. Поля домена: log.Info("spread detected", utils.Symbol("ETH"), utils.Spread(4.2))

// LogConfig задает параметры логирования
type LogConfig struct {
	Level       string // debug, info, warn, error, fatal
	Format      string // json или text
	Output      string // путь к файлу; пусто = stderr
	Development bool   // человекочитаемый вывод + caller
}

// Logger оборачивает zap.Logger вместе с sugared-вариантом
type Logger struct {
	*zap.Logger
	sugar *zap.SugaredLogger
}

// InitLogger создает и настраивает logger.
// Некорректный Output откатывается на stderr и не паникует.
func InitLogger(cfg LogConfig) *Logger {
	level := parseLevel(cfg.Level)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.Development {
		encCfg = zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	var encoder zapcore.Encoder
	switch strings.ToLower(cfg.Format) {
	case "text", "console":
		encoder = zapcore.NewConsoleEncoder(encCfg)
	default:
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	sink := zapcore.AddSync(os.Stderr)
	if cfg.Output != "" {
		if f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644); err == nil {
			sink = zapcore.AddSync(f)
		}
	}

	core := zapcore.NewCore(encoder, sink, level)

	var opts []zap.Option
	if cfg.Development {
		opts = append(opts, zap.Development(), zap.AddCaller())
	}

	zl := zap.New(core, opts...)
	return &Logger{Logger: zl, sugar: zl.Sugar()}
}

// parseLevel преобразует строковый уровень в zapcore.Level.
// Неизвестные значения дают info.
func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// ============================================================
// Глобальный logger (только для точки входа процесса)
// ============================================================

var (
	globalMu     sync.RWMutex
	globalLogger *Logger
)

// InitGlobalLogger создает logger и делает его глобальным
func InitGlobalLogger(cfg LogConfig) *Logger {
	l := InitLogger(cfg)
	SetGlobalLogger(l)
	return l
}

// SetGlobalLogger заменяет глобальный logger
func SetGlobalLogger(l *Logger) {
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()
}

// GetGlobalLogger возвращает глобальный logger, создавая дефолтный при первом вызове
func GetGlobalLogger() *Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l != nil {
		return l
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = InitLogger(LogConfig{})
	}
	return globalLogger
}

// L - короткий алиас для GetGlobalLogger
func L() *Logger {
	return GetGlobalLogger()
}

// ============================================================
// Методы Logger
// ============================================================

// With возвращает новый logger с добавленными полями
func (l *Logger) With(fields ...zap.Field) *Logger {
	zl := l.Logger.With(fields...)
	return &Logger{Logger: zl, sugar: zl.Sugar()}
}

// WithComponent помечает все записи именем компонента конвейера
func (l *Logger) WithComponent(name string) *Logger {
	return l.With(Component(name))
}

// WithVenue помечает записи идентификатором площадки
func (l *Logger) WithVenue(venueID string) *Logger {
	return l.With(Venue(venueID))
}

// WithSymbol помечает записи базовым символом
func (l *Logger) WithSymbol(symbol string) *Logger {
	return l.With(Symbol(symbol))
}

// WithPair помечает записи идентификатором арбитражной пары
func (l *Logger) WithPair(pairID string) *Logger {
	return l.With(Pair(pairID))
}

// WithSignal помечает записи коротким ID сигнала
func (l *Logger) WithSignal(signalID string) *Logger {
	return l.With(SignalID(signalID))
}

// Sugar возвращает sugared-вариант для printf-style логирования
func (l *Logger) Sugar() *zap.SugaredLogger {
	return l.sugar
}

// SugarWith возвращает sugared logger с добавленными структурными полями
func (l *Logger) SugarWith(fields ...zap.Field) *zap.SugaredLogger {
	return l.sugar.With(fieldsToInterface(fields)...)
}

// ============================================================
// Глобальные функции логирования
// ============================================================

// Debug логирует через глобальный logger
func Debug(msg string, fields ...zap.Field) {
	GetGlobalLogger().Debug(msg, fields...)
}

// Info логирует через глобальный logger
func Info(msg string, fields ...zap.Field) {
	GetGlobalLogger().Info(msg, fields...)
}

// Warn логирует через глобальный logger
func Warn(msg string, fields ...zap.Field) {
	GetGlobalLogger().Warn(msg, fields...)
}

// Error логирует через глобальный logger
func Error(msg string, fields ...zap.Field) {
	GetGlobalLogger().Error(msg, fields...)
}

// Debugf - printf-style через глобальный logger
func Debugf(format string, args ...interface{}) {
	GetGlobalLogger().sugar.Debugf(format, args...)
}

// Infof - printf-style через глобальный logger
func Infof(format string, args ...interface{}) {
	GetGlobalLogger().sugar.Infof(format, args...)
}

// Warnf - printf-style через глобальный logger
func Warnf(format string, args ...interface{}) {
	GetGlobalLogger().sugar.Warnf(format, args...)
}

// Errorf - printf-style через глобальный logger
func Errorf(format string, args ...interface{}) {
	GetGlobalLogger().sugar.Errorf(format, args...)
}

// ============================================================
// Конструкторы доменных полей
// ============================================================

// Venue - идентификатор площадки (binance_spot, bybit_futures, ...)
func Venue(id string) zap.Field { return zap.String("venue", id) }

// Symbol - базовый символ актива
func Symbol(s string) zap.Field { return zap.String("symbol", s) }

// Pair - идентификатор арбитражной пары low_venue:high_venue
func Pair(id string) zap.Field { return zap.String("pair_id", id) }

// SignalID - короткий ID сигнала
func SignalID(id string) zap.Field { return zap.String("signal_id", id) }

// Price - цена в котируемой валюте
func Price(p float64) zap.Field { return zap.Float64("price", p) }

// Spread - спред в процентах
func Spread(pct float64) zap.Field { return zap.Float64("spread_pct", pct) }

// Liquidity - ликвидность в USD
func Liquidity(usd float64) zap.Field { return zap.Float64("liquidity_usd", usd) }

// Latency - задержка операции в миллисекундах
func Latency(ms float64) zap.Field { return zap.Float64("latency_ms", ms) }

// State - состояние сущности (tracking, converged, ...)
func State(s string) zap.Field { return zap.String("state", s) }

// Reason - причина отклонения/закрытия
func Reason(r string) zap.Field { return zap.String("reason", r) }

// Component - имя компонента конвейера
func Component(name string) zap.Field { return zap.String("component", name) }

// RequestID - идентификатор HTTP запроса
func RequestID(id string) zap.Field { return zap.String("request_id", id) }

// UserID - идентификатор пользователя
func UserID(id int64) zap.Field { return zap.Int64("user_id", id) }

// Count - количество элементов в батче/очереди
func Count(n int) zap.Field { return zap.Int("count", n) }

// ============================================================
// Переэкспорт стандартных конструкторов zap
// ============================================================

func String(key, val string) zap.Field          { return zap.String(key, val) }
func Int(key string, val int) zap.Field         { return zap.Int(key, val) }
func Int64(key string, val int64) zap.Field     { return zap.Int64(key, val) }
func Float64(key string, val float64) zap.Field { return zap.Float64(key, val) }
func Bool(key string, val bool) zap.Field       { return zap.Bool(key, val) }
func Err(err error) zap.Field                   { return zap.Error(err) }
func Any(key string, val interface{}) zap.Field { return zap.Any(key, val) }
func Dur(key string, d time.Duration) zap.Field { return zap.Duration(key, d) }
func Time(key string, t time.Time) zap.Field    { return zap.Time(key, t) }
func Strings(key string, v []string) zap.Field  { return zap.Strings(key, v) }

// fieldsToInterface конвертирует zap поля в пары ключ/значение для sugar API
func fieldsToInterface(fields []zap.Field) []interface{} {
	args := make([]interface{}, 0, len(fields)*2)
	for _, f := range fields {
		args = append(args, f.Key)
		switch f.Type {
		case zapcore.StringType:
			args = append(args, f.String)
		case zapcore.Int64Type, zapcore.Int32Type:
			args = append(args, f.Integer)
		case zapcore.Float64Type:
			args = append(args, math.Float64frombits(uint64(f.Integer)))
		case zapcore.BoolType:
			args = append(args, f.Integer == 1)
		default:
			args = append(args, f.Interface)
		}
	}
	return args
}
