package agent

/*
Файл invoker.go: конвейер вызова инструментов агента.
Модель решает, какой инструмент вызвать, а Invoker прогоняет вызов через цепочку фильтров.
Фильтр может пропустить вызов дальше (next), подменить результат или прервать цепочку.
*/

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Arguments: аргументы вызова в том виде, в каком их прислала модель (JSON-объект).
type Arguments map[string]any

func (a Arguments) Text(key string) string {
	switch v := a[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Int64 принимает число или строку с числом.
func (a Arguments) Int64(key string) (int64, error) {
	switch v := a[key].(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v != float64(int64(v)) {
			return 0, fmt.Errorf("argument %q must be an integer", key)
		}
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("argument %q: %w", key, err)
		}
		return n, nil
	case nil:
		return 0, fmt.Errorf("argument %q is required", key)
	default:
		return 0, fmt.Errorf("argument %q has unsupported type %T", key, v)
	}
}

// Decimal читает денежный аргумент. Отсутствующий аргумент является ошибкой.
func (a Arguments) Decimal(key string) (decimal.Decimal, error) {
	switch v := a[key].(type) {
	case nil:
		return decimal.Zero, fmt.Errorf("argument %q is required", key)
	case decimal.Decimal:
		return v, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, fmt.Errorf("argument %q: %w", key, err)
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("argument %q has unsupported type %T", key, v)
	}
}

// Call: один вызов инструмента.
type Call struct {
	Tool string
	Args Arguments
}

type Tool interface {
	Name() string
	Invoke(ctx context.Context, args Arguments) (string, error)
}

// Next продолжает цепочку фильтров.
type Next func(ctx context.Context, call Call) (string, error)

type Filter interface {
	Invoke(ctx context.Context, call Call, next Next) (string, error)
}

type FilterFunc func(ctx context.Context, call Call, next Next) (string, error)

func (f FilterFunc) Invoke(ctx context.Context, call Call, next Next) (string, error) {
	return f(ctx, call, next)
}

type Invoker struct {
	tools   map[string]Tool
	filters []Filter
	logger  *zap.Logger
}

// NewInvoker: фильтры выполняются в порядке передачи, первый, самый внешний.
func NewInvoker(logger *zap.Logger, filters ...Filter) *Invoker {
	return &Invoker{
		tools:   make(map[string]Tool),
		filters: filters,
		logger:  logger.Named("invoker"),
	}
}

func (i *Invoker) Register(tools ...Tool) {
	for _, t := range tools {
		i.tools[t.Name()] = t
	}
}

func (i *Invoker) Invoke(ctx context.Context, call Call) (string, error) {
	tool, ok := i.tools[call.Tool]
	if !ok {
		return "", fmt.Errorf("unknown tool %q", call.Tool)
	}
	if call.Args == nil {
		call.Args = Arguments{}
	}

	// Цепочка собирается с конца: последний фильтр вызывает сам инструмент
	next := func(ctx context.Context, c Call) (string, error) {
		return tool.Invoke(ctx, c.Args)
	}
	for idx := len(i.filters) - 1; idx >= 0; idx-- {
		f, inner := i.filters[idx], next
		next = func(ctx context.Context, c Call) (string, error) {
			return f.Invoke(ctx, c, inner)
		}
	}

	result, err := next(ctx, call)
	if err != nil {
		i.logger.Warn("tool invocation failed", zap.String("tool", call.Tool), zap.Error(err))
	}
	return result, err
}
