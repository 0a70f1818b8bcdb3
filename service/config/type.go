package config

type CaptureParameters struct {
	Type      string `yaml:"type"`   // camera, random
	Device    string `yaml:"device"` // device index or URL
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	Rotate180 bool   `yaml:"rotate180"`
}

type DetectorParameters struct {
	Type                 string  `yaml:"type"` // dnn, fake
	AcceleratedModelPath string  `yaml:"acceleratedModelPath"`
	CPUModelPath         string  `yaml:"cpuModelPath"`
	LabelsPath           string  `yaml:"labelsPath"`
	InputSize            int     `yaml:"inputSize"`
	ConfidenceThreshold  float32 `yaml:"confidenceThreshold"`
	DedupDistance        float64 `yaml:"dedupDistance"`
	DetectionsLog        string  `yaml:"detectionsLog"`
}

type StreamParameters struct {
	DefaultPort int `yaml:"defaultPort"`
	ChunkSize   int `yaml:"chunkSize"`
	JPEGQuality int `yaml:"jpegQuality"`
}

type SessionParameters struct {
	ListenAddress       string `yaml:"listenAddress"`
	RegistrationTimeout int    `yaml:"registrationTimeout"` // seconds
	WriteTimeout        int    `yaml:"writeTimeout"`        // seconds
}

type ReceiverParameters struct {
	ListenAddress    string `yaml:"listenAddress"`
	ReassemblyTTL    int    `yaml:"reassemblyTTL"` // milliseconds
	MaxPendingFrames int    `yaml:"maxPendingFrames"`
}

type DisplayParameters struct {
	Enabled bool   `yaml:"enabled"`
	Title   string `yaml:"title"`
	Scale   int    `yaml:"scale"`
}

type EmitterParameters struct {
	Broker   string `yaml:"broker"` // empty disables the emitter
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"clientId"`
	QoS      byte   `yaml:"qos"`
	Format   string `yaml:"format"` // json, msgpack
}

type IService interface {
	GetModeMaxShutdownTime() int
	GetStatsPeriodicTimeout() int
	GetSettingsFolder() string
	GetCaptureParameters() CaptureParameters
	GetDetectorParameters() DetectorParameters
	GetStreamParameters() StreamParameters
	GetSessionParameters() SessionParameters
	GetReceiverParameters() ReceiverParameters
	GetDisplayParameters() DisplayParameters
	GetEmitterParameters() EmitterParameters
}
