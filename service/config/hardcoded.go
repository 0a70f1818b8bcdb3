package config

type settings struct {
	ModeMaxShutdownTime  int                `yaml:"modeMaxShutdownTime"`  // seconds
	StatsPeriodicTimeout int                `yaml:"statsPeriodicTimeout"` // seconds
	SettingsFolder       string             `yaml:"settingsFolder"`
	Capture              CaptureParameters  `yaml:"capture"`
	Detector             DetectorParameters `yaml:"detector"`
	Stream               StreamParameters   `yaml:"stream"`
	Session              SessionParameters  `yaml:"session"`
	Receiver             ReceiverParameters `yaml:"receiver"`
	Display              DisplayParameters  `yaml:"display"`
	Emitter              EmitterParameters  `yaml:"emitter"`
}

type hardcodedService struct {
	s settings
}

// NewHardCoded returns the built-in defaults, with AICAM_* environment
// overrides applied.
func NewHardCoded() IService {
	s := defaults()
	applyEnv(&s)
	return &hardcodedService{s: s}
}

func defaults() settings {
	return settings{
		ModeMaxShutdownTime:  5,
		StatsPeriodicTimeout: 30,
		SettingsFolder:       "./settings",
		Capture: CaptureParameters{
			Type:      "camera",
			Device:    "0",
			Width:     320,
			Height:    240,
			Rotate180: true,
		},
		Detector: DetectorParameters{
			Type:                 "dnn",
			AcceleratedModelPath: "./model/ssd_mobilenet_v2_coco_accel.onnx",
			CPUModelPath:         "./model/ssd_mobilenet_v2_coco.onnx",
			LabelsPath:           "./model/coco_labels.txt",
			InputSize:            640,
			ConfidenceThreshold:  0.4,
			DedupDistance:        15,
			DetectionsLog:        "",
		},
		Stream: StreamParameters{
			DefaultPort: 5000,
			ChunkSize:   1200,
			JPEGQuality: 80,
		},
		Session: SessionParameters{
			ListenAddress:       ":61965",
			RegistrationTimeout: 10,
			WriteTimeout:        5,
		},
		Receiver: ReceiverParameters{
			ListenAddress:    ":5000",
			ReassemblyTTL:    2000,
			MaxPendingFrames: 32,
		},
		Display: DisplayParameters{
			Enabled: true,
			Title:   "aicam",
			Scale:   3,
		},
		Emitter: EmitterParameters{
			Broker:   "",
			Topic:    "aicam/detections",
			ClientID: "aicam",
			QoS:      0,
			Format:   "json",
		},
	}
}

func (svc *hardcodedService) GetModeMaxShutdownTime() int {
	return svc.s.ModeMaxShutdownTime
}

func (svc *hardcodedService) GetStatsPeriodicTimeout() int {
	return svc.s.StatsPeriodicTimeout
}

func (svc *hardcodedService) GetSettingsFolder() string {
	return svc.s.SettingsFolder
}

func (svc *hardcodedService) GetCaptureParameters() CaptureParameters {
	return svc.s.Capture
}

func (svc *hardcodedService) GetDetectorParameters() DetectorParameters {
	return svc.s.Detector
}

func (svc *hardcodedService) GetStreamParameters() StreamParameters {
	return svc.s.Stream
}

func (svc *hardcodedService) GetSessionParameters() SessionParameters {
	return svc.s.Session
}

func (svc *hardcodedService) GetReceiverParameters() ReceiverParameters {
	return svc.s.Receiver
}

func (svc *hardcodedService) GetDisplayParameters() DisplayParameters {
	return svc.s.Display
}

func (svc *hardcodedService) GetEmitterParameters() EmitterParameters {
	return svc.s.Emitter
}
