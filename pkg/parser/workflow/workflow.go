// Package workflow decodes GitHub Actions style CI workflow files.
//
// The document is walked as a yaml.Node tree so that scalar text (such as
// the interpreter version "3.10") and mapping key order are preserved.
package workflow

import (
	"io"
	"strconv"
	"strings"

	"github.com/m-mizutani/annodb/pkg/domain/model"
	"github.com/m-mizutani/annodb/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

// Parse decodes a workflow document.
func Parse(r io.Reader) (*model.Workflow, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, goerr.New("empty workflow document", goerr.T(types.ErrTagParse))
		}
		return nil, goerr.Wrap(err, "failed to decode workflow YAML", goerr.T(types.ErrTagParse))
	}

	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, nodeError(root, "workflow must be a mapping")
	}

	wf := &model.Workflow{}
	for _, kv := range pairs(root) {
		key, value := kv[0].Value, kv[1]
		switch key {
		case "name":
			wf.Name = value.Value
		case "on", "true":
			triggers, err := parseTriggers(value)
			if err != nil {
				return nil, err
			}
			wf.Triggers = triggers
		case "jobs":
			if value.Kind != yaml.MappingNode {
				return nil, nodeError(value, "jobs must be a mapping")
			}
			for _, jkv := range pairs(value) {
				job, err := parseJob(jkv[0].Value, jkv[1])
				if err != nil {
					return nil, err
				}
				wf.Jobs = append(wf.Jobs, job)
			}
		}
	}

	if len(wf.Triggers) == 0 {
		return nil, nodeError(root, `workflow has no "on" triggers`)
	}
	if len(wf.Jobs) == 0 {
		return nil, nodeError(root, "workflow has no jobs")
	}
	if _, err := wf.JobOrder(); err != nil {
		return nil, goerr.Wrap(err, "invalid job dependencies", goerr.T(types.ErrTagParse))
	}
	return wf, nil
}

func parseTriggers(node *yaml.Node) ([]model.Trigger, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return []model.Trigger{{Event: node.Value}}, nil

	case yaml.SequenceNode:
		triggers := make([]model.Trigger, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return nil, nodeError(item, "event list must contain names")
			}
			triggers = append(triggers, model.Trigger{Event: item.Value})
		}
		return triggers, nil

	case yaml.MappingNode:
		var triggers []model.Trigger
		for _, kv := range pairs(node) {
			t := model.Trigger{Event: kv[0].Value}
			filters := kv[1]
			if filters.Kind == yaml.MappingNode {
				for _, fkv := range pairs(filters) {
					values, err := stringList(fkv[1])
					if err != nil {
						return nil, err
					}
					switch fkv[0].Value {
					case "branches":
						t.Branches = values
					case "branches-ignore":
						t.BranchesIgnore = values
					case "tags":
						t.Tags = values
					case "tags-ignore":
						t.TagsIgnore = values
					case "types":
						t.Types = values
					}
				}
			}
			triggers = append(triggers, t)
		}
		return triggers, nil
	}

	return nil, nodeError(node, `unsupported "on" value`)
}

func parseJob(id string, node *yaml.Node) (*model.Job, error) {
	if node.Kind != yaml.MappingNode {
		return nil, nodeError(node, "job must be a mapping", goerr.V("job", id))
	}

	job := &model.Job{ID: id, FailFast: true}
	for _, kv := range pairs(node) {
		key, value := kv[0].Value, kv[1]
		switch key {
		case "name":
			job.Name = value.Value
		case "runs-on":
			labels, err := stringList(value)
			if err != nil {
				return nil, err
			}
			job.RunsOn = strings.Join(labels, ",")
		case "continue-on-error":
			job.ContinueOnError = boolValue(value)
		case "needs":
			needs, err := stringList(value)
			if err != nil {
				return nil, err
			}
			job.Needs = needs
		case "strategy":
			if err := parseStrategy(job, value); err != nil {
				return nil, goerr.Wrap(err, "invalid strategy", goerr.V("job", id))
			}
		case "steps":
			if value.Kind != yaml.SequenceNode {
				return nil, nodeError(value, "steps must be a list", goerr.V("job", id))
			}
			for _, item := range value.Content {
				step, err := parseStep(item)
				if err != nil {
					return nil, goerr.Wrap(err, "invalid step", goerr.V("job", id))
				}
				job.Steps = append(job.Steps, step)
			}
		}
	}
	return job, nil
}

func parseStrategy(job *model.Job, node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return nodeError(node, "strategy must be a mapping")
	}

	for _, kv := range pairs(node) {
		switch kv[0].Value {
		case "fail-fast":
			job.FailFast = boolValue(kv[1])
		case "matrix":
			m, err := parseMatrix(kv[1])
			if err != nil {
				return err
			}
			job.Matrix = m
		}
	}
	return nil
}

func parseMatrix(node *yaml.Node) (model.Matrix, error) {
	var m model.Matrix
	if node.Kind != yaml.MappingNode {
		return m, nodeError(node, "matrix must be a mapping", goerr.T(types.ErrTagUnsupported))
	}

	for _, kv := range pairs(node) {
		key, value := kv[0].Value, kv[1]
		switch key {
		case "include", "exclude":
			if value.Kind != yaml.SequenceNode {
				return m, nodeError(value, key+" must be a list")
			}
			for _, item := range value.Content {
				entry, err := matrixEntry(item)
				if err != nil {
					return m, err
				}
				if key == "include" {
					m.Include = append(m.Include, entry)
				} else {
					m.Exclude = append(m.Exclude, entry)
				}
			}
		default:
			values, err := stringList(value)
			if err != nil {
				return m, goerr.Wrap(err, "invalid matrix axis", goerr.V("axis", key))
			}
			m.Axes = append(m.Axes, model.MatrixAxis{Name: key, Values: values})
		}
	}
	return m, nil
}

func matrixEntry(node *yaml.Node) (model.MatrixEntry, error) {
	entry := model.MatrixEntry{Values: map[string]string{}}
	if node.Kind != yaml.MappingNode {
		return entry, nodeError(node, "matrix include/exclude entries must be mappings")
	}
	for _, kv := range pairs(node) {
		entry.Keys = append(entry.Keys, kv[0].Value)
		entry.Values[kv[0].Value] = scalarText(kv[1])
	}
	return entry, nil
}

func parseStep(node *yaml.Node) (model.Step, error) {
	var step model.Step
	if node.Kind != yaml.MappingNode {
		return step, nodeError(node, "step must be a mapping")
	}

	for _, kv := range pairs(node) {
		key, value := kv[0].Value, kv[1]
		switch key {
		case "id":
			step.ID = value.Value
		case "name":
			step.Name = value.Value
		case "uses":
			step.Uses = value.Value
		case "run":
			step.Run = value.Value
		case "if":
			step.If = value.Value
		case "continue-on-error":
			step.ContinueOnError = boolValue(value)
		case "with":
			if value.Kind != yaml.MappingNode {
				return step, nodeError(value, "with must be a mapping")
			}
			step.With = map[string]string{}
			for _, wkv := range pairs(value) {
				step.WithKeys = append(step.WithKeys, wkv[0].Value)
				step.With[wkv[0].Value] = scalarText(wkv[1])
			}
		}
	}

	if step.Uses == "" && step.Run == "" {
		return step, nodeError(node, `step needs "uses" or "run"`)
	}
	return step, nil
}

func pairs(node *yaml.Node) [][2]*yaml.Node {
	result := make([][2]*yaml.Node, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		result = append(result, [2]*yaml.Node{node.Content[i], node.Content[i+1]})
	}
	return result
}

func stringList(node *yaml.Node) ([]string, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return nil, nil
		}
		return []string{node.Value}, nil
	case yaml.SequenceNode:
		values := make([]string, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return nil, nodeError(item, "expected a scalar value")
			}
			values = append(values, item.Value)
		}
		return values, nil
	}
	return nil, nodeError(node, "expected a scalar or a list")
}

// scalarText returns the source text of a scalar. Non-scalar values are
// re-encoded as flow YAML.
func scalarText(node *yaml.Node) string {
	if node.Kind == yaml.ScalarNode {
		return node.Value
	}
	out, err := yaml.Marshal(node)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func boolValue(node *yaml.Node) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(node.Value))
	return err == nil && b
}

func nodeError(node *yaml.Node, msg string, opts ...goerr.Option) error {
	opts = append(opts,
		goerr.V("line", node.Line),
		goerr.V("column", node.Column),
		goerr.T(types.ErrTagParse))
	return goerr.New(msg, opts...)
}
