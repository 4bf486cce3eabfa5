//go:build amd64 && (linux || windows || darwin)

package sonic

import (
	"github.com/bytedance/sonic"
	"github.com/karagenc/actionsocket/serializer"
)

type Config = sonic.Config

type sonicSerializer struct {
	api sonic.API
}

func (s *sonicSerializer) Marshal(v any) ([]byte, error) {
	return s.api.Marshal(v)
}

func (s *sonicSerializer) Unmarshal(data []byte, v any) error {
	return s.api.Unmarshal(data, v)
}

func New(config Config) serializer.JSONSerializer {
	return &sonicSerializer{api: config.Froze()}
}
