package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-http

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"

	"writer-backend/internal/bootstrap"
	"writer-backend/internal/shared/config"
	"writer-backend/internal/shared/storage/db"
	"writer-backend/internal/shared/telemetry"
)

var (
	initOnce  sync.Once
	initErr   error
	ginLambda *ginadapter.GinLambdaV2
)

// initApp runs once per container. Migrations belong to cmd/migrate, and
// timeouts are swept by the worker deployment.
func initApp(ctx context.Context) {
	cfg, err := config.LoadWithSecrets(ctx)
	if err != nil {
		initErr = err
		return
	}
	telemetry.Init(telemetry.Config{Level: cfg.LogLevel, Service: "writer-api-lambda"})
	app, err := bootstrap.Build(ctx, cfg, bootstrap.Options{
		DBOptions:      db.OptionsFromEnv(db.DefaultWorkerOptions()),
		SkipMigrations: true,
	})
	if err != nil {
		initErr = err
		return
	}
	ginLambda = ginadapter.NewV2(app.Router)
}

func errorResponse(msg string) events.APIGatewayV2HTTPResponse {
	body, _ := json.Marshal(map[string]any{"error": map[string]string{"code": "internal_error", "message": msg}})
	return events.APIGatewayV2HTTPResponse{
		StatusCode: 500,
		Body:       string(body),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

func handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	initOnce.Do(func() { initApp(context.WithoutCancel(ctx)) })
	if initErr != nil {
		log.Printf("bootstrap error: %v", initErr)
		return errorResponse("bootstrap failed"), initErr
	}
	if ginLambda == nil {
		return errorResponse("router not initialized"), nil
	}
	return ginLambda.ProxyWithContext(ctx, req)
}

func main() {
	lambda.Start(handler)
}
