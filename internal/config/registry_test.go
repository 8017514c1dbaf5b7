package config_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/audioflow/internal/config"
	"github.com/MrWong99/audioflow/pkg/pipeline"
	"github.com/MrWong99/audioflow/pkg/pipeline/mock"
)

func TestRegistry(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	reg.Register("sink", func(sc config.StageConfig, tools config.Tools) (pipeline.Node, error) {
		return &mock.Sink{NodeName: sc.Name + "@" + tools.Sox}, nil
	})
	reg.Register("broken", func(config.StageConfig, config.Tools) (pipeline.Node, error) {
		return nil, errors.New("no such preset")
	})

	n, err := reg.Create(config.StageConfig{Name: "s", Kind: "sink"}, config.Tools{Sox: "sox"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Name() != "s@sox" {
		t.Errorf("name: got %q", n.Name())
	}

	_, err = reg.Create(config.StageConfig{Name: "x", Kind: "nope"}, config.Tools{})
	if !errors.Is(err, config.ErrStageNotRegistered) {
		t.Errorf("unknown kind: got %v, want ErrStageNotRegistered", err)
	}

	_, err = reg.Create(config.StageConfig{Name: "b", Kind: "broken"}, config.Tools{})
	if err == nil || err.Error() != `config: stage "b" (broken): no such preset` {
		t.Errorf("factory error: got %v", err)
	}

	if diff := cmp.Diff([]string{"broken", "sink"}, reg.Kinds()); diff != "" {
		t.Errorf("kinds mismatch (-want +got):\n%s", diff)
	}
}
