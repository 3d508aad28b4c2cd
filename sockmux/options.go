package sockmux

import (
	"errors"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
)

var errBadHibernate = errors.New("sockmux: unknown hibernate policy")

// HibernatePolicy controls the optional idle-reclaim timer.
type HibernatePolicy int

const (
	// HibernateAuto enables hibernation only when HibernateDelay is shorter
	// than HeartbeatDelay; otherwise the heartbeat always fires first and
	// hibernating is pointless.
	HibernateAuto HibernatePolicy = iota
	// HibernateAlways reclaims as soon as the session goes idle.
	HibernateAlways
	// HibernateNever disables the timer.
	HibernateNever
)

// Options holds the per-session timing configuration and the logger. The
// zero value is not usable, start from DefaultOptions.
type Options struct {
	// DisconnectDelay is how long a session survives with no connection
	// waiting on it before it is considered abandoned and terminated.
	DisconnectDelay time.Duration
	// HeartbeatDelay is how long a waiting connection is left parked before
	// it is woken with a heartbeat frame.
	HeartbeatDelay time.Duration
	// HibernateDelay is the idle period before buffers are compacted, under
	// HibernateAuto. Ignored for the other policies.
	HibernateDelay time.Duration
	Hibernate      HibernatePolicy

	// Logger receives structured session events. Defaults to a nop logger.
	Logger *zap.Logger
}

// DefaultOptions mirrors the delays browsers and intermediaries tolerate:
// 25s heartbeats keep proxies from killing idle polls, 5s disconnect grace
// covers the gap between two polls of a well-behaved client.
var DefaultOptions = Options{
	DisconnectDelay: 5 * time.Second,
	HeartbeatDelay:  25 * time.Second,
	Hibernate:       HibernateNever,
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// hibernateTimeout resolves the policy against the heartbeat delay.
// A negative result means the timer stays disarmed.
func (o Options) hibernateTimeout() time.Duration {
	switch o.Hibernate {
	case HibernateAlways:
		return 0
	case HibernateNever:
		return -1
	}
	if o.HibernateDelay <= 0 || o.HibernateDelay >= o.HeartbeatDelay {
		return -1
	}
	return o.HibernateDelay
}

type optionsFile struct {
	DisconnectDelayMS int    `toml:"disconnect_delay"`
	HeartbeatDelayMS  int    `toml:"heartbeat_delay"`
	HibernateDelayMS  int    `toml:"hibernate_delay"`
	Hibernate         string `toml:"hibernate"`
}

// OptionsFromFile loads delays from a TOML file. Durations are milliseconds;
// hibernate is one of "auto", "always", "never". Absent fields keep their
// DefaultOptions value.
func OptionsFromFile(path string) (Options, error) {
	var raw optionsFile
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return Options{}, err
	}
	opts := DefaultOptions
	if raw.DisconnectDelayMS > 0 {
		opts.DisconnectDelay = time.Duration(raw.DisconnectDelayMS) * time.Millisecond
	}
	if raw.HeartbeatDelayMS > 0 {
		opts.HeartbeatDelay = time.Duration(raw.HeartbeatDelayMS) * time.Millisecond
	}
	if raw.HibernateDelayMS > 0 {
		opts.HibernateDelay = time.Duration(raw.HibernateDelayMS) * time.Millisecond
	}
	switch raw.Hibernate {
	case "", "never":
		opts.Hibernate = HibernateNever
	case "auto":
		opts.Hibernate = HibernateAuto
	case "always":
		opts.Hibernate = HibernateAlways
	default:
		return Options{}, errBadHibernate
	}
	return opts, nil
}

// ConnInfo is transport metadata captured when the session is created and
// immutable afterwards.
type ConnInfo struct {
	RemoteAddr string
	LocalAddr  string
	Path       string
	Headers    map[string]string
}
