// Package services contains the domain logic of a VirSorter run.
package services

import (
	"strings"

	"github.com/ochairo/virsorter-runner/internal/domain/entities"
)

// Defaults for the VirSorter invocation
const (
	DefaultToolBinary = "wrapper_phage_contigs_sorter_iPlant.pl"
	DefaultDataDir    = "/data/virsorter-data"
)

// toolFlags maps parameter names to the tool's spelling of the flag
var toolFlags = map[string]string{
	entities.ParamGenomes:  "-f",
	entities.ParamDatabase: "--db",
	entities.ParamVirome:   "--virome",
	entities.ParamDiamond:  "--diamond",
	entities.ParamKeepDB:   "--keep-db",
	entities.ParamNoC:      "--no_c",
}

// CommandBuilder turns run parameters into a VirSorter command line
type CommandBuilder struct {
	binary  string
	dataDir string
}

// NewCommandBuilder creates a command builder; empty arguments fall back to defaults
func NewCommandBuilder(binary, dataDir string) *CommandBuilder {
	if binary == "" {
		binary = DefaultToolBinary
	}
	if dataDir == "" {
		dataDir = DefaultDataDir
	}
	return &CommandBuilder{binary: binary, dataDir: dataDir}
}

// Build creates the command line for params.
// Switch flags are emitted when their parameter equals 0.
func (b *CommandBuilder) Build(params *entities.RunParameters) (*entities.CommandLine, error) {
	genomes, err := requiredValue(params, entities.ParamGenomes)
	if err != nil {
		return nil, err
	}
	database, err := requiredValue(params, entities.ParamDatabase)
	if err != nil {
		return nil, err
	}

	for _, name := range entities.BooleanParams {
		if !params.Has(name) {
			return nil, &entities.MissingParameterError{Name: name}
		}
	}

	args := []string{
		"--data-dir", b.dataDir,
		toolFlags[entities.ParamGenomes], genomes,
		toolFlags[entities.ParamDatabase], database,
	}

	for _, name := range entities.BooleanParams {
		if params.IsOff(name) {
			args = append(args, toolFlags[name])
		}
	}

	return entities.NewCommandLine(b.binary, args...), nil
}

// BuildHelp returns the command printing the tool's usage
func (b *CommandBuilder) BuildHelp() *entities.CommandLine {
	return entities.NewCommandLine(b.binary, "--help")
}

// requiredValue fetches a value that is passed as a flag argument
func requiredValue(params *entities.RunParameters, name string) (string, error) {
	value, ok := params.String(name)
	if !ok {
		return "", &entities.MissingParameterError{Name: name}
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return "", &entities.InvalidParameterError{Name: name, Value: value, Reason: "value is empty"}
	}
	// A leading dash would be read as another option by the tool
	if strings.HasPrefix(value, "-") {
		return "", &entities.InvalidParameterError{Name: name, Value: value, Reason: "value must not start with '-'"}
	}

	return value, nil
}
