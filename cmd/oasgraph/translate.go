package main

import (
	"context"
	"fmt"
	"os"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/oasgraph/oasgraph/pkg/graph"
	"github.com/oasgraph/oasgraph/pkg/translate"
)

var (
	inputFiles  []string
	outputFile  string
	printReport bool
)

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Translate OpenAPI documents and print the resulting schema as SDL",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(inputFiles) == 0 {
			return fmt.Errorf("at least one input document is required, use -f")
		}

		logger, sync := newLogger()
		defer sync()

		documents := make([]*openapi3.T, 0, len(inputFiles))
		for _, file := range inputFiles {
			input, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			document, err := translate.ParseDocument(context.Background(), input)
			if err != nil {
				return fmt.Errorf("parse %s: %w", file, err)
			}
			documents = append(documents, document)
		}

		opts := translate.DefaultOptions()
		opts.Logger = logger
		opts.Strict = viper.GetBool("strict")
		opts.SimpleNames = viper.GetBool("simple-names")
		opts.SimpleEnumValues = viper.GetBool("simple-enum-values")
		opts.SingularNames = viper.GetBool("singular-names")
		opts.OperationIDFieldNames = viper.GetBool("operation-id-field-names")
		opts.FillEmptyResponses = viper.GetBool("fill-empty-responses")
		opts.AddLimitArgument = viper.GetBool("add-limit-argument")
		opts.GenericPayloadArgName = viper.GetBool("generic-payload-arg-name")
		opts.CreateSubscriptionsFromCallbacks = viper.GetBool("subscriptions-from-callbacks")
		opts.Viewer = viper.GetBool("viewer")
		opts.SendOAuthTokenInQuery = viper.GetBool("send-oauth-token-in-query")
		opts.IDFormats = viper.GetStringSlice("id-formats")
		opts.BaseURL = viper.GetString("base-url")
		opts.Headers = viper.GetStringMapString("headers")
		opts.QueryParams = viper.GetStringMapString("query-params")

		schema, report, err := translate.Translate(documents, opts)
		if err != nil {
			return err
		}

		sdl := graph.PrintSchema(schema)
		if outputFile != "" {
			if err := os.WriteFile(outputFile, sdl, 0644); err != nil {
				return err
			}
		} else {
			_, _ = os.Stdout.Write(sdl)
		}

		if printReport {
			fmt.Fprintf(os.Stderr, "operations: %d queries, %d mutations, %d subscriptions\n",
				report.NumQueriesSeen, report.NumMutationsSeen, report.NumSubscriptionsSeen)
			fmt.Fprintf(os.Stderr, "fields: %d queries, %d mutations, %d subscriptions, %d authenticated\n",
				report.NumQueryFields, report.NumMutationFields, report.NumSubscriptionFields, report.NumAuthenticatedFields)
			for _, warning := range report.Warnings {
				fmt.Fprintln(os.Stderr, "warning:", warning.String())
			}
		}
		return nil
	},
}

func init() {
	translateCmd.Flags().StringSliceVarP(&inputFiles, "file", "f", nil, "OpenAPI document to translate, repeatable")
	translateCmd.Flags().StringVarP(&outputFile, "out", "o", "", "write the SDL to a file instead of stdout")
	translateCmd.Flags().BoolVar(&printReport, "report", false, "print the translation report to stderr")

	translateCmd.Flags().Bool("strict", false, "escalate warnings to errors")
	translateCmd.Flags().Bool("simple-names", false, "keep generated names close to the source vocabulary")
	translateCmd.Flags().Bool("simple-enum-values", false, "skip the ALL_CAPS conversion of enum values")
	translateCmd.Flags().Bool("singular-names", false, "derive query names from the URL path resource")
	translateCmd.Flags().Bool("operation-id-field-names", false, "force operationId-based field names")
	translateCmd.Flags().Bool("fill-empty-responses", false, "synthesize placeholder types for empty responses")
	translateCmd.Flags().Bool("add-limit-argument", false, "add a limit argument to list fields")
	translateCmd.Flags().Bool("generic-payload-arg-name", false, "name every payload argument requestBody")
	translateCmd.Flags().Bool("subscriptions-from-callbacks", false, "turn callbacks into subscriptions")
	translateCmd.Flags().Bool("viewer", true, "group authenticated operations into viewer namespaces")
	translateCmd.Flags().Bool("send-oauth-token-in-query", false, "send tokens as the access_token query parameter")
	translateCmd.Flags().StringSlice("id-formats", nil, "extra string formats treated as ID scalars")
	translateCmd.Flags().String("base-url", "", "override server resolution for every operation")

	for _, name := range []string{
		"strict", "simple-names", "simple-enum-values", "singular-names",
		"operation-id-field-names", "fill-empty-responses", "add-limit-argument",
		"generic-payload-arg-name", "subscriptions-from-callbacks", "viewer",
		"send-oauth-token-in-query", "id-formats", "base-url",
	} {
		_ = viper.BindPFlag(name, translateCmd.Flags().Lookup(name))
	}

	rootCmd.AddCommand(translateCmd)
}
