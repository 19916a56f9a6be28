package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/user/silant-monitoring-api/internal/config"
	"github.com/user/silant-monitoring-api/internal/repository"
	"github.com/user/silant-monitoring-api/internal/services/importer"
)

func main() {
	configPath := flag.String("config", "config.yaml", "путь к файлу конфигурации")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Использование: %s [-config config.yaml] <файл.xlsx>\n", os.Args[0])
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	db, err := repository.NewPostgresDB(cfg.Database)
	if err != nil {
		log.Fatalf("Ошибка подключения к БД: %v", err)
	}

	repo := repository.NewRepository(db)
	service := importer.NewService(repo)

	// Завершённые проходы фиксируются даже при ошибке схемы
	// на следующем листе, поэтому их итоги печатаются в любом случае
	reports, err := service.ImportFile(path)
	printReports(reports)
	if err != nil {
		var schemaErr *importer.SchemaError
		if errors.As(err, &schemaErr) {
			log.Fatalf("Файл не соответствует формату: %v", schemaErr)
		}
		log.Fatalf("Ошибка импорта: %v", err)
	}
}

func printReports(reports []importer.Report) {
	for _, report := range reports {
		fmt.Printf("Лист %q: обработано %d, пропущено %d\n", report.Sheet, report.Processed, report.Skipped)
		for _, warning := range report.Warnings {
			fmt.Printf("  - %s\n", warning)
		}
	}
}
