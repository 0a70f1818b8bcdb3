package config

import (
	"os"
	"strconv"

	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

// NewFile reads a YAML file over the built-in defaults. Keys missing from the
// file keep their default value. AICAM_* environment variables win over both.
func NewFile(path string) (IService, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("failed to read config file: %w", err)
	}

	s := defaults()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, xerrors.Errorf("failed to parse config: %w", err)
	}

	applyEnv(&s)

	if err := validate(&s); err != nil {
		return nil, xerrors.Errorf("invalid configuration: %w", err)
	}

	return &hardcodedService{s: s}, nil
}

func applyEnv(s *settings) {
	if v := os.Getenv("AICAM_SETTINGS_FOLDER"); v != "" {
		s.SettingsFolder = v
	}
	if v := os.Getenv("AICAM_CAPTURE_TYPE"); v != "" {
		s.Capture.Type = v
	}
	if v := os.Getenv("AICAM_CAPTURE_DEVICE"); v != "" {
		s.Capture.Device = v
	}
	if v := os.Getenv("AICAM_DETECTOR_TYPE"); v != "" {
		s.Detector.Type = v
	}
	if v := os.Getenv("AICAM_SESSION_ADDR"); v != "" {
		s.Session.ListenAddress = v
	}
	if v := os.Getenv("AICAM_RECEIVER_ADDR"); v != "" {
		s.Receiver.ListenAddress = v
	}
	if v := os.Getenv("AICAM_MQTT_BROKER"); v != "" {
		s.Emitter.Broker = v
	}
	if v := os.Getenv("AICAM_DISPLAY"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			s.Display.Enabled = enabled
		}
	}
}

func validate(s *settings) error {
	if s.StatsPeriodicTimeout <= 0 {
		return xerrors.Errorf("statsPeriodicTimeout must be positive, got %d", s.StatsPeriodicTimeout)
	}

	switch s.Capture.Type {
	case "camera", "random":
	default:
		return xerrors.Errorf("capture.type must be camera or random, got %q", s.Capture.Type)
	}

	if s.Capture.Width <= 0 || s.Capture.Height <= 0 {
		return xerrors.Errorf("capture size must be positive, got %dx%d", s.Capture.Width, s.Capture.Height)
	}

	switch s.Detector.Type {
	case "dnn", "fake":
	default:
		return xerrors.Errorf("detector.type must be dnn or fake, got %q", s.Detector.Type)
	}

	if s.Detector.ConfidenceThreshold < 0 || s.Detector.ConfidenceThreshold > 1 {
		return xerrors.Errorf("detector.confidenceThreshold must be in [0,1], got %v", s.Detector.ConfidenceThreshold)
	}

	if s.Detector.DedupDistance < 0 {
		return xerrors.Errorf("detector.dedupDistance must not be negative, got %v", s.Detector.DedupDistance)
	}

	// The 8-byte header plus the chunk must fit in one UDP datagram.
	if s.Stream.ChunkSize <= 0 || s.Stream.ChunkSize > 65507-8 {
		return xerrors.Errorf("stream.chunkSize out of range: %d", s.Stream.ChunkSize)
	}

	if s.Stream.DefaultPort <= 0 || s.Stream.DefaultPort > 65535 {
		return xerrors.Errorf("stream.defaultPort out of range: %d", s.Stream.DefaultPort)
	}

	if s.Stream.JPEGQuality < 1 || s.Stream.JPEGQuality > 100 {
		return xerrors.Errorf("stream.jpegQuality must be in [1,100], got %d", s.Stream.JPEGQuality)
	}

	if s.Receiver.MaxPendingFrames <= 0 {
		return xerrors.Errorf("receiver.maxPendingFrames must be positive, got %d", s.Receiver.MaxPendingFrames)
	}

	switch s.Emitter.Format {
	case "json", "msgpack":
	default:
		return xerrors.Errorf("emitter.format must be json or msgpack, got %q", s.Emitter.Format)
	}

	return nil
}
