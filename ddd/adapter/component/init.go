package component

import "streaming-engine/pkg/manager"

func init() {
	manager.RegisterComponentPlugin(&JobSubmissionConsumerPlugin{})
}
