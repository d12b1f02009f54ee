package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/farosearch/faro/internal/domain"
)

func newListCmd() *cobra.Command {
	var flagFormat string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the documents defined in the meta file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings()
			if err != nil {
				return err
			}

			docs, err := loadDocuments(cfg.AppSettings.MetaFilePath)
			if err != nil {
				return err
			}

			switch flagFormat {
			case "json":
				out, err := json.MarshalIndent(docs, "", "  ")
				if err != nil {
					return failMeta(err)
				}

				fmt.Println(string(out))
			case "pretty":
				if len(docs) == 0 {
					fmt.Println("No documents defined.")

					return nil
				}

				for _, doc := range docs {
					fmt.Printf("%s\n", doc.Name)

					for _, f := range doc.Fields {
						var marks []string
						if f.VecInput {
							marks = append(marks, "vec_input")
						}

						if f.Unique {
							marks = append(marks, "unique")
						}

						if len(marks) > 0 {
							fmt.Printf("  - %s (%s)\n", f.Name, strings.Join(marks, ", "))
						} else {
							fmt.Printf("  - %s\n", f.Name)
						}
					}
				}
			default:
				return failMeta(fmt.Errorf("unknown format %q, use pretty or json", flagFormat))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&flagFormat, "format", "pretty", "Output format: pretty|json")

	return cmd
}

func newAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add",
		Short: "Interactively define a new document",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings()
			if err != nil {
				return err
			}

			doc, err := promptDocument(os.Stdin)
			if err != nil {
				return failMeta(err)
			}

			if err := domain.AddDocument(cfg.AppSettings.MetaFilePath, *doc); err != nil {
				return failMeta(err)
			}

			fmt.Printf("Document %q added. Place data files under %s/%s and run `faro sync --doc %s`.\n",
				doc.Name, sourcesRoot, doc.Name, doc.Name)

			return nil
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <doc>",
		Short: "Remove a document definition from the meta file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings()
			if err != nil {
				return err
			}

			if err := domain.DeleteDocument(cfg.AppSettings.MetaFilePath, args[0]); err != nil {
				return failMeta(err)
			}

			fmt.Printf("Document %q removed. Its tables are left in the database.\n", args[0])

			return nil
		},
	}
}

// promptDocument walks the operator through a document definition.
func promptDocument(in *os.File) (*domain.Document, error) {
	reader := bufio.NewReader(in)

	fmt.Print("Document name: ")

	name, err := readLine(reader)
	if err != nil {
		return nil, err
	}

	doc := domain.Document{Name: strings.ToLower(name)}

	for {
		fmt.Print("Field name (empty to finish): ")

		fieldName, err := readLine(reader)
		if err != nil {
			return nil, err
		}

		if fieldName == "" {
			break
		}

		vecInput, err := promptYesNo(reader, "  part of the searchable payload? [y/N]: ")
		if err != nil {
			return nil, err
		}

		unique, err := promptYesNo(reader, "  unique key? [y/N]: ")
		if err != nil {
			return nil, err
		}

		doc.Fields = append(doc.Fields, domain.Field{Name: fieldName, VecInput: vecInput, Unique: unique})
	}

	if err := doc.Validate(); err != nil {
		return nil, err
	}

	return &doc, nil
}

func promptYesNo(reader *bufio.Reader, prompt string) (bool, error) {
	fmt.Print(prompt)

	answer, err := readLine(reader)
	if err != nil {
		return false, err
	}

	answer = strings.ToLower(answer)

	return answer == "y" || answer == "yes", nil
}

func readLine(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading input: %w", err)
	}

	return strings.TrimSpace(line), nil
}
