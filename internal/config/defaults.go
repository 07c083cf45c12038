package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	capture := "fswebcam --quiet --no-banner --resolution 1280x720 {output}"
	viewer := "ffplay -loglevel error -f v4l2 {device}"

	return Config{
		Server: ServerConfig{
			Addr:              ":8888",
			ReadTimeoutMS:     30000,
			WriteTimeoutMS:    30000,
			ResponseTimeoutMS: 120000,
		},
		Camera: CameraConfig{
			Backend:          BackendCommand,
			Capture:          mustParseCommand(capture, OutputPlaceholder, DevicePlaceholder),
			Viewer:           mustParseCommand(viewer, DevicePlaceholder),
			Device:           "/dev/video0",
			PhotoDir:         "~/Pictures/aperture",
			CaptureTimeoutMS: 15000,
			GPIO: GPIOConfig{
				FocusPin:       24,
				ShutterPin:     25,
				FocusDelayMS:   500,
				ShutterDelayMS: 200,
			},
		},
		Props: PropsConfig{Audio: true},
		Indicator: IndicatorConfig{
			Enable:         true,
			DesktopAppName: "aperture",
			TimeoutMS:      10000,
			SoundEnable:    true,
		},
		Log: LogConfig{Level: "info"},
	}
}
