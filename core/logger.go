package core

import (
	"log"
	"strings"
	"sync"
)

// LogLevel : niveau de sévérité d'un message.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelOff
)

// LogConfig correspond à la section `log:` du YAML.
type LogConfig struct {
	Level      string            `yaml:"level"`
	Components map[string]string `yaml:"components"`
}

// Logger filtre les messages par composant (tag) et par niveau.
type Logger struct {
	mu          sync.RWMutex
	globalLevel LogLevel
	components  map[string]LogLevel
}

// ParseLevel renvoie LevelInfo pour une valeur inconnue.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "off", "none":
		return LevelOff
	default:
		return LevelInfo
	}
}

func NewLogger(cfg LogConfig) *Logger {
	l := &Logger{
		globalLevel: ParseLevel(cfg.Level),
		components:  make(map[string]LogLevel, len(cfg.Components)),
	}
	for name, level := range cfg.Components {
		l.components[strings.ToLower(name)] = ParseLevel(level)
	}
	return l
}

// Configure remplace les niveaux en place (appelé après lecture du YAML).
func (l *Logger) Configure(cfg LogConfig) {
	fresh := NewLogger(cfg)
	l.mu.Lock()
	l.globalLevel = fresh.globalLevel
	l.components = fresh.components
	l.mu.Unlock()
}

func (l *Logger) enabled(tag string, level LogLevel) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	effective, ok := l.components[strings.ToLower(tag)]
	if !ok {
		effective = l.globalLevel
	}
	return effective <= level && effective != LevelOff
}

func (l *Logger) Debugf(tag, format string, args ...any) {
	if l.enabled(tag, LevelDebug) {
		log.Printf("🔍 ["+tag+"] "+format, args...)
	}
}

func (l *Logger) Infof(tag, format string, args ...any) {
	if l.enabled(tag, LevelInfo) {
		log.Printf("["+tag+"] "+format, args...)
	}
}

func (l *Logger) Warnf(tag, format string, args ...any) {
	if l.enabled(tag, LevelWarn) {
		log.Printf("⚠️ ["+tag+"] "+format, args...)
	}
}

func (l *Logger) Errorf(tag, format string, args ...any) {
	if l.enabled(tag, LevelError) {
		log.Printf("❌ ["+tag+"] "+format, args...)
	}
}

// Log est l'instance globale, niveau info par défaut.
var Log = NewLogger(LogConfig{})
