package ffmpeg

import "testing"

func TestParseProbe(t *testing.T) {
	out := []byte(`{
  "streams": [
    {"codec_type": "audio", "codec_name": "aac"},
    {"codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080, "duration": "12.0"}
  ],
  "format": {"format_name": "mov,mp4,m4a,3gp,3g2,mj2", "duration": "12.480000", "size": "1048576"}
}`)
	src, err := parseProbe(out)
	if err != nil {
		t.Fatalf("parseProbe: %v", err)
	}
	if src.Duration != 12.48 || src.Width != 1920 || src.Height != 1080 {
		t.Fatalf("unexpected source: %+v", src)
	}
	if src.Format != "mov" || src.Codec != "h264" || src.Size != 1048576 {
		t.Fatalf("unexpected source: %+v", src)
	}
}

func TestParseProbe_RotatedAndStreamDuration(t *testing.T) {
	out := []byte(`{
  "streams": [{"codec_type": "video", "codec_name": "hevc", "width": 1920, "height": 1080, "duration": "3.5", "tags": {"rotate": "-90"}}],
  "format": {"format_name": "mov", "duration": "N/A"}
}`)
	src, err := parseProbe(out)
	if err != nil {
		t.Fatalf("parseProbe: %v", err)
	}
	if src.Width != 1080 || src.Height != 1920 {
		t.Fatalf("rotation must swap dimensions: %+v", src)
	}
	if src.Duration != 3.5 {
		t.Fatalf("expected stream duration fallback, got %v", src.Duration)
	}
}

func TestParseProbe_Errors(t *testing.T) {
	if _, err := parseProbe([]byte("not json")); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := parseProbe([]byte(`{"streams":[{"codec_type":"audio"}],"format":{}}`)); err == nil {
		t.Fatalf("expected error for audio-only file")
	}
}

func TestParseStreams_AudioPresence(t *testing.T) {
	silent, err := parseProbe([]byte(`{"streams":[{"codec_type":"video","codec_name":"h264","width":640,"height":360}],"format":{"format_name":"mp4","duration":"2.0"}}`))
	if err != nil {
		t.Fatalf("parseProbe: %v", err)
	}
	if !silent.Silent {
		t.Fatalf("file without audio stream must be marked silent")
	}
	audible, err := parseProbe([]byte(`{"streams":[{"codec_type":"video","codec_name":"h264","width":640,"height":360},{"codec_type":"audio","codec_name":"aac"}],"format":{"format_name":"mp4","duration":"2.0"}}`))
	if err != nil {
		t.Fatalf("parseProbe: %v", err)
	}
	if audible.Silent {
		t.Fatalf("file with audio stream must not be marked silent")
	}
}
