package dispatch

import (
	"context"

	"github.com/mattjoyce/taskd/internal/command"
	"github.com/mattjoyce/taskd/internal/task"
)

//go:generate mockgen -destination=mocks/mock_handlers.go -package=mocks github.com/mattjoyce/taskd/internal/dispatch FileHandler,CommandHandler

// FileHandler performs file/* operations.
type FileHandler interface {
	Create(ctx context.Context, op task.FileCreate) error
	Edit(ctx context.Context, op task.FileEdit) error
	Delete(ctx context.Context, op task.FileDelete) error
}

// CommandHandler performs command/run operations.
type CommandHandler interface {
	Run(ctx context.Context, op task.CommandRun) (*command.Result, error)
}
