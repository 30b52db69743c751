// cmd/tools/registry-updater/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"grain-workers/pkg/registry"
)

var registryPath string

// taskTypes are the job types the worker manager registers.
var taskTypes = []string{
	"identify-object",
	"generate-content",
	"generate-card-image",
	"fetch-coverage",
	"submit-feedback",
	"card-activity",
}

func main() {
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	taskType := updateCmd.String("taskType", "", "Task type to update")
	field := updateCmd.String("field", "", "Field to update (status, version, timeout, retries, description)")
	value := updateCmd.String("value", "", "New value for the field")
	updateCmd.StringVar(&registryPath, "path", "configs/activity-registry.json", "Path to registry file")
	validateCmd.StringVar(&registryPath, "path", "configs/activity-registry.json", "Path to registry file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "update":
		updateCmd.Parse(os.Args[2:])
		if *taskType == "" || *field == "" || *value == "" {
			fmt.Println("Error: taskType, field, and value are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		if err := updateActivity(*taskType, *field, *value); err != nil {
			fmt.Printf("Error updating activity: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated %s, field %s to %s\n", *taskType, *field, *value)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		n, err := validateRegistry()
		if err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Registry validation passed. Found %d activities.\n", n)

	default:
		help()
	}
}

func updateActivity(taskType, field, value string) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	a, ok := reg.Find(taskType)
	if !ok {
		return fmt.Errorf("no activity for task type %s", taskType)
	}

	switch field {
	case "status":
		a.ImplementationStatus = value
	case "version":
		a.Version = value
	case "description":
		a.Description = value
	case "timeout":
		a.Timeout = value
	case "retries":
		retries, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid retries value: %w", err)
		}
		a.Retries = retries
	default:
		return fmt.Errorf("unknown field: %s", field)
	}

	if err := reg.Validate(); err != nil {
		return err
	}
	return reg.Save(registryPath)
}

func validateRegistry() (int, error) {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return 0, fmt.Errorf("failed to load registry: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return 0, err
	}
	if missing := reg.Missing(taskTypes...); len(missing) > 0 {
		return 0, fmt.Errorf("no activity for %s", strings.Join(missing, ", "))
	}
	return len(reg.Activities), nil
}

func help() {
	fmt.Println(`
Usage: registry-updater <command> [flags]

Commands:
  update   Update one field of the activity bound to a task type
  validate Validate the registry file and check every worker task type is listed
  help     Show this help message

Examples:
  registry-updater update -taskType generate-content -field timeout -value 240s
  registry-updater validate -path configs/activity-registry.json`)
}
