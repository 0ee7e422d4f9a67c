package biz

import (
	"ExitLane/pkg/llm"

	"github.com/google/wire"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewConversationUseCase,
	wire.Bind(new(LMClient), new(*llm.Client)),
)
