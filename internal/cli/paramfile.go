package cli

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/specialistvlad/femloop/internal/gradient"
	"github.com/specialistvlad/femloop/internal/params"
	"github.com/specialistvlad/femloop/internal/solver"
	"gopkg.in/yaml.v3"
)

// ReadParamsFile reads a YAML mapping of NAME: value pairs. Document order
// is kept, which is why the file is decoded as a node tree rather than into
// a map. An empty file yields an empty set.
func ReadParamsFile(path string) (*params.Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading parameter file: %w", err)
	}
	set := params.New()

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parameter file %s: %w", path, err)
	}
	if len(doc.Content) == 0 {
		return set, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parameter file %s: line %d: want a mapping of NAME: value", path, root.Line)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key, node := root.Content[i], root.Content[i+1]
		v, err := scalarValue(node)
		if err != nil {
			return nil, fmt.Errorf("parameter file %s: line %d: %s: %w", path, node.Line, key.Value, err)
		}
		set.Put(key.Value, v)
	}
	return set, nil
}

func scalarValue(node *yaml.Node) (params.Value, error) {
	if node.Kind != yaml.ScalarNode {
		return params.Value{}, fmt.Errorf("value must be a scalar")
	}
	switch node.ShortTag() {
	case "!!int", "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return params.Value{}, err
		}
		return params.Number(f), nil
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return params.Value{}, err
		}
		if b {
			return params.Int(1), nil
		}
		return params.Int(0), nil
	case "!!str":
		return params.ParseValue(node.Value), nil
	default:
		return params.Value{}, fmt.Errorf("unsupported value %q", node.Value)
	}
}

// WriteParamsFile writes set as a YAML mapping in set order.
func WriteParamsFile(path string, set *params.Set) error {
	return writeYAML(path, setNode(set))
}

// WriteSolveFile writes the outputs of one solve, plus any time history and
// validation warnings.
func WriteSolveFile(path string, res *solver.Result) error {
	root := mapping(
		scalar("!!str", "run"), scalar("!!int", strconv.Itoa(res.Run)),
		scalar("!!str", "elapsed"), scalar("!!str", res.Elapsed.Round(time.Millisecond).String()),
		scalar("!!str", "outputs"), setNode(res.Outputs),
	)
	if !res.History.Empty() {
		hist := mapping()
		for _, id := range res.History.IDs() {
			values, _ := res.History.Get(id)
			seq := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
			for _, f := range values {
				seq.Content = append(seq.Content, number(f))
			}
			hist.Content = append(hist.Content, scalar("!!int", strconv.Itoa(id)), seq)
		}
		root.Content = append(root.Content, scalar("!!str", "history"), hist)
	}
	if len(res.Mismatches) > 0 {
		seq := &yaml.Node{Kind: yaml.SequenceNode}
		for _, m := range res.Mismatches {
			seq.Content = append(seq.Content, scalar("!!str", m.String()))
		}
		root.Content = append(root.Content, scalar("!!str", "mismatches"), seq)
	}
	return writeYAML(path, root)
}

// WriteGradientFile writes derivatives as outputs -> inputs -> value.
func WriteGradientFile(path string, res *gradient.Result) error {
	inputs := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, name := range res.Inputs {
		inputs.Content = append(inputs.Content, scalar("!!str", name))
	}
	root := mapping(
		scalar("!!str", "method"), scalar("!!str", string(res.Method)),
		scalar("!!str", "step"), number(res.Step),
		scalar("!!str", "solves"), scalar("!!int", strconv.Itoa(res.Solves)),
		scalar("!!str", "inputs"), inputs,
	)
	if res.Base != nil {
		root.Content = append(root.Content, scalar("!!str", "base"), setNode(res.Base))
	}

	derivs := mapping()
	for _, out := range res.Outputs {
		row := mapping()
		for _, in := range res.Inputs {
			if d, ok := res.Get(out, in); ok {
				row.Content = append(row.Content, scalar("!!str", in), number(d))
			}
		}
		derivs.Content = append(derivs.Content, scalar("!!str", out), row)
	}
	root.Content = append(root.Content, scalar("!!str", "derivatives"), derivs)
	return writeYAML(path, root)
}

func setNode(set *params.Set) *yaml.Node {
	node := mapping()
	set.Range(func(name string, v params.Value) bool {
		node.Content = append(node.Content, scalar("!!str", name), valueNode(v))
		return true
	})
	return node
}

func valueNode(v params.Value) *yaml.Node {
	switch v.Kind() {
	case params.KindInt:
		return scalar("!!int", v.String())
	case params.KindFloat:
		f, _ := v.Float64()
		return number(f)
	default:
		return scalar("!!str", v.String())
	}
}

func mapping(content ...*yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Content: content}
}

func scalar(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

// number leaves the tag empty so the encoder writes a plain scalar that
// reads back as an int or a float, whichever the text resolves to.
func number(f float64) *yaml.Node {
	switch {
	case math.IsNaN(f):
		return scalar("", ".nan")
	case math.IsInf(f, 1):
		return scalar("", ".inf")
	case math.IsInf(f, -1):
		return scalar("", "-.inf")
	}
	return scalar("", strconv.FormatFloat(f, 'g', -1, 64))
}

func writeYAML(path string, root *yaml.Node) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(&yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
