// Package cmd implements the aula command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "aula",
	Short: "Aula - asistente educativo sobre IA",
	Long: `Aula es un chatbot educativo sobre inteligencia artificial.
Responde preguntas en español basándose en una colección curada de
documentos, citando siempre las fuentes utilizadas.

Ejecuta 'aula serve' para arrancar el servidor HTTP o 'aula ask' para
hacer una pregunta puntual desde la terminal.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
