package config

type AppConfig struct {
	Server    ServerConfig
	Log       LogConfig
	AI        AIConfig
	Drawing   DrawingConfig
	Narrative NarrativeConfig
}

func LoadApp() (AppConfig, error) {
	logCfg, err := LoadLog()
	if err != nil {
		return AppConfig{}, err
	}
	serverCfg, err := LoadServer()
	if err != nil {
		return AppConfig{}, err
	}
	aiCfg, err := LoadAI()
	if err != nil {
		return AppConfig{}, err
	}
	drawingCfg, err := LoadDrawing()
	if err != nil {
		return AppConfig{}, err
	}
	narrativeCfg, err := LoadNarrative()
	if err != nil {
		return AppConfig{}, err
	}
	return AppConfig{
		Server:    serverCfg,
		Log:       logCfg,
		AI:        aiCfg,
		Drawing:   drawingCfg,
		Narrative: narrativeCfg,
	}, nil
}
