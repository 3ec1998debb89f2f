package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Service holds the settings every HTTP-facing hop shares.
type Service struct {
	Host        string
	Port        int
	ServiceName string
}

func (s Service) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Target is the statically configured address of the next hop. There is no
// service discovery; the chain is wired entirely through configuration.
type Target struct {
	Host string
	Port int
	Path string
}

func (t Target) URL() string {
	return fmt.Sprintf("http://%s:%d%s", t.Host, t.Port, t.Path)
}

// Terminal configures the leaf hop: its synthetic failure rate and the
// bounds of its simulated processing delay.
type Terminal struct {
	Service
	FailRate float64
	WorkMin  time.Duration
	WorkMax  time.Duration
}

// Relay configures an intermediate hop.
type Relay struct {
	Service
	Target         Target
	RequestTimeout time.Duration
	WorkMin        time.Duration
	WorkMax        time.Duration
}

// Driver configures the load driver loop.
type Driver struct {
	ServiceName    string
	Target         Target
	RequestTimeout time.Duration
	InitialDelay   time.Duration
	MinSleep       time.Duration
	MaxSleep       time.Duration
	MetricsPort    int
}

func NewTerminal() (*Terminal, error) {
	godotenv.Load()

	svc, err := newService("terminal")
	if err != nil {
		return nil, err
	}

	failRate, err := getEnvFloat("FAIL_RATE", "0.1")
	if err != nil {
		return nil, err
	}
	if failRate < 0 || failRate > 1 {
		return nil, fmt.Errorf("FAIL_RATE must be between 0 and 1, got %v", failRate)
	}

	workMin, workMax, err := getEnvRange("WORK_MIN", "WORK_MAX", "0.01", "0.2")
	if err != nil {
		return nil, err
	}

	return &Terminal{
		Service:  svc,
		FailRate: failRate,
		WorkMin:  workMin,
		WorkMax:  workMax,
	}, nil
}

func NewRelay() (*Relay, error) {
	godotenv.Load()

	svc, err := newService("relay")
	if err != nil {
		return nil, err
	}

	target, err := newTarget()
	if err != nil {
		return nil, err
	}

	timeout, err := getEnvSeconds("REQUEST_TIMEOUT", "10")
	if err != nil {
		return nil, err
	}

	workMin, workMax, err := getEnvRange("WORK_MIN", "WORK_MAX", "0", "0.05")
	if err != nil {
		return nil, err
	}

	return &Relay{
		Service:        svc,
		Target:         target,
		RequestTimeout: timeout,
		WorkMin:        workMin,
		WorkMax:        workMax,
	}, nil
}

func NewDriver() (*Driver, error) {
	godotenv.Load()

	target, err := newTarget()
	if err != nil {
		return nil, err
	}

	timeout, err := getEnvSeconds("REQUEST_TIMEOUT", "10")
	if err != nil {
		return nil, err
	}

	initialDelay, err := getEnvSeconds("INITIAL_DELAY", "5")
	if err != nil {
		return nil, err
	}

	minSleep, maxSleep, err := getEnvRange("MIN_SLEEP", "MAX_SLEEP", "1", "5")
	if err != nil {
		return nil, err
	}

	metricsPort, err := getEnvInt("METRICS_PORT", "0")
	if err != nil {
		return nil, err
	}

	return &Driver{
		ServiceName:    getEnvWithDefault("SERVICE_NAME", "driver"),
		Target:         target,
		RequestTimeout: timeout,
		InitialDelay:   initialDelay,
		MinSleep:       minSleep,
		MaxSleep:       maxSleep,
		MetricsPort:    metricsPort,
	}, nil
}

func newService(defaultName string) (Service, error) {
	port, err := getEnvInt("PORT", "8080")
	if err != nil {
		return Service{}, err
	}

	return Service{
		Host:        getEnvWithDefault("HOST", "0.0.0.0"),
		Port:        port,
		ServiceName: getEnvWithDefault("SERVICE_NAME", defaultName),
	}, nil
}

func newTarget() (Target, error) {
	port, err := getEnvInt("TARGET_PORT", "8080")
	if err != nil {
		return Target{}, err
	}

	return Target{
		Host: getEnvWithDefault("TARGET_HOST", "localhost"),
		Port: port,
		Path: getEnvWithDefault("TARGET_PATH", "/process"),
	}, nil
}

func getEnvInt(key, defaultValue string) (int, error) {
	val, err := strconv.Atoi(getEnvWithDefault(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return val, nil
}

func getEnvFloat(key, defaultValue string) (float64, error) {
	val, err := strconv.ParseFloat(getEnvWithDefault(key, defaultValue), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return val, nil
}

// getEnvSeconds reads a floating-point number of seconds.
func getEnvSeconds(key, defaultValue string) (time.Duration, error) {
	val, err := getEnvFloat(key, defaultValue)
	if err != nil {
		return 0, err
	}
	if val < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %v", key, val)
	}
	return time.Duration(val * float64(time.Second)), nil
}

func getEnvRange(minKey, maxKey, minDefault, maxDefault string) (time.Duration, time.Duration, error) {
	minVal, err := getEnvSeconds(minKey, minDefault)
	if err != nil {
		return 0, 0, err
	}
	maxVal, err := getEnvSeconds(maxKey, maxDefault)
	if err != nil {
		return 0, 0, err
	}
	if maxVal < minVal {
		return 0, 0, fmt.Errorf("%s must not be smaller than %s", maxKey, minKey)
	}
	return minVal, maxVal, nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return defaultValue
}
