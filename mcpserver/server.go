// Package mcpserver exposes the leave-of-absence calculator as an MCP tool over stdio
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/liamcoop/excedencia/calculator"
	"github.com/liamcoop/excedencia/internal/logger"
)

const (
	ServerName    = "bon-calculadora"
	ServerVersion = "1.0.0"
	ToolName      = "evaluar_supuesto_excedencia"
)

const toolDescription = "Evalúa el derecho a ayuda para excedencia según la normativa de Navarra 2025. " +
	"Determina supuesto (A-E) e importe (0€/500€/725€). " +
	"SUPUESTOS: A=Cuidado familiar enfermo (725€), B=Tercer hijo+ (500€), C=Adopción (500€), D=Múltiple (500€), E=Monoparental (500€). " +
	"USE VALORES EXACTOS: parentesco ('padre'/'madre'/'hijo'/'hija'/'conyuge'/'pareja'/'esposo'/'esposa'/'mujer'/'marido'), " +
	"situacion ('parto'/'adopcion'/'acogimiento'/'parto_multiple'/'adopcion_multiple'/'acogimiento_multiple'/'enfermedad'/'accidente'), " +
	"familia_monoparental (true/false), numero_hijos (número)."

// Instructions is the usage guide sent to clients on initialization
const Instructions = `Calculadora de ayudas para excedencia según la normativa de Navarra 2025.

** INSTRUCCIONES IMPORTANTES PARA USO DE HERRAMIENTAS **

1. SIEMPRE use los valores EXACTOS especificados para cada parámetro, CASE SENSITIVE

2. Para parentesco, use ÚNICAMENTE: 'padre', 'madre', 'hijo', 'hija', 'conyuge', 'pareja', 'esposo', 'esposa', 'mujer', 'marido'

3. Para situacion, use ÚNICAMENTE: 'parto', 'adopcion', 'acogimiento', 'parto_multiple', 'adopcion_multiple', 'acogimiento_multiple', 'enfermedad', 'accidente'

4. Para familia_monoparental, use ÚNICAMENTE: true (para familias monoparentales) o false (para familias no monoparentales)

5. Para numero_hijos, use números enteros (ej: 1, 2, 3, 4, 5)

EJEMPLOS DE USO CORRECTO:
• Padre soltero con bebé: parentesco='padre', situacion='parto', familia_monoparental=true, numero_hijos=1
• Hijo cuidando a padre enfermo: parentesco='padre', situacion='enfermedad', familia_monoparental=false
• Familia con tercer hijo: parentesco='madre', situacion='parto', familia_monoparental=false, numero_hijos=3

SUPUESTOS EVALUADOS:
A) Cuidado familiar enfermo/accidentado (725€/mes)
B) Tercer hijo+ con recién nacido (500€/mes)
C) Adopción/acogimiento (500€/mes)
D) Partos/adopciones múltiples (500€/mes)
E) Familias monoparentales (500€/mes)`

// Server wires the evaluator to an MCP server
type Server struct {
	mcp       *server.MCPServer
	evaluator *calculator.Evaluator
}

// New creates the MCP server and registers the evaluation tool
func New(evaluator *calculator.Evaluator) *Server {
	s := &Server{
		mcp: server.NewMCPServer(ServerName, ServerVersion,
			server.WithToolCapabilities(false),
			server.WithInstructions(Instructions),
			server.WithRecovery(),
		),
		evaluator: evaluator,
	}
	s.mcp.AddTool(Tool(), s.handleEvaluate)
	return s
}

// Tool describes the evaluation tool and its parameters
func Tool() mcp.Tool {
	return mcp.NewTool(ToolName,
		mcp.WithDescription(toolDescription),
		mcp.WithString(calculator.FieldRelationship,
			mcp.Required(),
			mcp.Description("Relación familiar con la persona que necesita cuidado. VALORES VÁLIDOS: 'padre', 'madre', 'hijo', 'hija', 'conyuge', 'pareja', 'esposo', 'esposa', 'mujer', 'marido'. Ejemplo: 'madre'"),
		),
		mcp.WithString(calculator.FieldTrigger,
			mcp.Required(),
			mcp.Description("Situación que motiva la necesidad de cuidado. VALORES VÁLIDOS: 'parto', 'adopcion', 'acogimiento', 'parto_multiple', 'adopcion_multiple', 'acogimiento_multiple', 'enfermedad', 'accidente'. Ejemplo: 'parto'"),
		),
		mcp.WithBoolean(calculator.FieldSingleParentFamily,
			mcp.Required(),
			mcp.Description("¿Es una familia monoparental? Acepta valores booleanos (true/false) o strings ('true'/'false'). Ejemplo: true"),
		),
		mcp.WithNumber(calculator.FieldChildCount,
			mcp.Description("Número total de hijos incluyendo al recién nacido (requerido para Supuesto B - tercer hijo o más). Acepta números (3) o strings ('3'). Ejemplo: 3"),
		),
	)
}

// MCPServer returns the underlying protocol server
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// ServeStdio serves the protocol on the given streams until ctx is done or stdin closes
func (s *Server) ServeStdio(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	logger.Info("Starting MCP server on stdio", "name", ServerName, "version", ServerVersion)
	return server.NewStdioServer(s.mcp).Listen(ctx, stdin, stdout)
}

func (s *Server) handleEvaluate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := s.evaluator.EvaluateArgs(ctx, req.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(calculator.Report(err)), nil
	}

	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error al serializar la respuesta: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
