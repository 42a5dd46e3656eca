package types

// AudioMode says what the render does with the segments' audio.
type AudioMode string

const (
	AudioNone        AudioMode = "none"
	AudioPassthrough AudioMode = "passthrough"
	AudioEncode      AudioMode = "encode"
)

// Stage is one step of the video filter graph, applied in RenderSpec.Stages order.
type Stage string

const (
	StageConcat Stage = "concat"
	StageCrop   Stage = "crop"
	StageColor  Stage = "color"
	StageScale  Stage = "scale"
	StageFPS    Stage = "fps"
)

// Segment is one source range, rendered back to back with its neighbours.
type Segment struct {
	SourcePath string  `json:"source_path"`
	InPoint    float64 `json:"in_point"`
	OutPoint   float64 `json:"out_point"`
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
	Silent     bool    `json:"silent,omitempty"`
}

func (s Segment) Duration() float64 { return s.OutPoint - s.InPoint }

type CropRegion struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// VideoParams are resolved encoder settings. Exactly one of BitrateKbps and CRF is set.
type VideoParams struct {
	Codec       string     `json:"codec"`
	Resolution  Resolution `json:"resolution"`
	FrameRate   FrameRate  `json:"fps"`
	BitrateKbps int        `json:"bitrate_kbps,omitempty"`
	CRF         *int       `json:"crf,omitempty"`
	Preset      Preset     `json:"preset"`
}

type AudioParams struct {
	Mode  AudioMode `json:"mode"`
	Codec string    `json:"codec,omitempty"`
}

// RenderSpec is a fully resolved, engine-agnostic description of one export job.
type RenderSpec struct {
	Container     string       `json:"container"`
	Segments      []Segment    `json:"segments"`
	Stages        []Stage      `json:"stages"`
	Crop          *CropRegion  `json:"crop,omitempty"`
	Color         *ColorAdjust `json:"color,omitempty"`
	Video         VideoParams  `json:"video"`
	Audio         AudioParams  `json:"audio"`
	TotalDuration float64      `json:"total_duration"`
}
