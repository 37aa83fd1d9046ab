package main

import (
	"flag"
	"fmt"
	"os"
	"reflect"

	"github.com/chrissnell/observerip/pkg/config"
)

func main() {
	var (
		yamlFile   = flag.String("yaml", "", "Path to YAML configuration file")
		sqliteFile = flag.String("sqlite", "", "Path to SQLite configuration file")
	)
	flag.Parse()

	if *yamlFile == "" || *sqliteFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -yaml <config.yaml> -sqlite <config.db>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("Configuration Comparison Test")
	fmt.Println("===========================")

	fmt.Printf("Loading YAML configuration: %s\n", *yamlFile)
	yamlConfig, err := config.NewYAMLProvider(*yamlFile).LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading YAML config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Loading SQLite configuration: %s\n", *sqliteFile)
	sqliteProvider, err := config.NewSQLiteProvider(*sqliteFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating SQLite provider: %v\n", err)
		os.Exit(1)
	}
	defer sqliteProvider.Close()

	sqliteConfig, err := sqliteProvider.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading SQLite config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nComparison Results:")
	fmt.Println("==================")

	ok := compareDevices(yamlConfig.Devices, sqliteConfig.Devices)
	ok = check("Storage configuration", yamlConfig.Storage, sqliteConfig.Storage) && ok
	ok = check("Controllers", yamlConfig.Controllers, sqliteConfig.Controllers) && ok

	if !ok {
		fmt.Println("\nConfigurations differ")
		os.Exit(1)
	}
	fmt.Println("\nTest completed!")
}

func compareDevices(yamlDevices, sqliteDevices []config.DeviceData) bool {
	fmt.Printf("Devices - YAML: %d, SQLite: %d\n", len(yamlDevices), len(sqliteDevices))
	if len(yamlDevices) != len(sqliteDevices) {
		fmt.Println("✗ Device count mismatch")
		return false
	}

	ok := true
	for i, yd := range yamlDevices {
		sd := sqliteDevices[i]
		if !check("Device "+yd.Name, yd, sd) {
			printObserverIPDiff(yd.ObserverIP, sd.ObserverIP)
			ok = false
		}
	}
	return ok
}

func check(what string, a, b interface{}) bool {
	if reflect.DeepEqual(a, b) {
		fmt.Printf("✓ %s matches\n", what)
		return true
	}
	fmt.Printf("✗ %s differs\n", what)
	return false
}

func printObserverIPDiff(yaml, sqlite *config.ObserverIPData) {
	if yaml == nil || sqlite == nil {
		fmt.Printf("  observerip stanza: YAML=%v, SQLite=%v\n", yaml != nil, sqlite != nil)
		return
	}

	ya, sa := reflect.ValueOf(*yaml), reflect.ValueOf(*sqlite)
	for i := 0; i < ya.NumField(); i++ {
		yf, sf := ya.Field(i).Interface(), sa.Field(i).Interface()
		if !reflect.DeepEqual(yf, sf) {
			fmt.Printf("  %s: YAML=%v, SQLite=%v\n", ya.Type().Field(i).Name, yf, sf)
		}
	}
}
