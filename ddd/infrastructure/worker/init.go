package worker

import "streaming-engine/pkg/manager"

func init() {
	manager.RegisterComponentPlugin(&JobWorkerComponentPlugin{})
}
