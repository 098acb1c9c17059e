package http

import "streaming-engine/pkg/manager"

func init() {
	// 注册控制器插件
	manager.RegisterControllerPlugin(&JobControllerPlugin{})
	manager.RegisterControllerPlugin(&StreamControllerPlugin{})
}
