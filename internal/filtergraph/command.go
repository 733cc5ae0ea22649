package filtergraph

// Input is one -i source with the options that must precede it.
type Input struct {
	Path    string
	Options []string
}

// Plan is the engine-independent description of one transformation: which
// inputs to open, the graph to run and which pads become the output.
// A Copy plan has no graph and means "remux the first input unchanged".
type Plan struct {
	Copy    bool
	Graph   *Graph
	Maps    []Pad
	Options []string // output options such as codecs
	// InputOptions are prepended to the -i of the input at the same index.
	InputOptions map[int][]string
}

// Command is a fully bound invocation of the media engine.
type Command struct {
	Inputs  []Input
	Plan    Plan
	Output  string
	Verbose bool
}

// Bind attaches input paths and an output path to a plan.
func (p Plan) Bind(output string, inputs ...string) Command {
	ins := make([]Input, len(inputs))
	for i, path := range inputs {
		ins[i] = Input{Path: path, Options: p.InputOptions[i]}
	}
	return Command{Inputs: ins, Plan: p, Output: output}
}

// Args renders the argument vector, excluding the engine binary itself.
func (c Command) Args() []string {
	args := []string{"-hide_banner", "-nostdin", "-y"}
	if !c.Verbose {
		args = append(args, "-loglevel", "error")
	}
	for _, in := range c.Inputs {
		args = append(args, in.Options...)
		args = append(args, "-i", in.Path)
	}
	if c.Plan.Copy {
		args = append(args, "-map", "0", "-c", "copy")
	} else if c.Plan.Graph != nil {
		args = append(args, "-filter_complex", c.Plan.Graph.Render())
		for _, m := range c.Plan.Maps {
			args = append(args, "-map", MapArg(m))
		}
	}
	args = append(args, c.Plan.Options...)
	return append(args, c.Output)
}

// Validate checks the bound graph.
func (c Command) Validate() error {
	if c.Plan.Copy || c.Plan.Graph == nil {
		return nil
	}
	return c.Plan.Graph.Validate(c.Plan.Maps)
}
