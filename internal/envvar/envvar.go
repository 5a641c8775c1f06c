package envvar

const (
	// NeurocalcEnv is the environment variable used to determine the environment
	NeurocalcEnv = "NEUROCALC_ENV"

	// NeurocalcServerHTTPPort is the environment variable used to determine the HTTP port
	NeurocalcServerHTTPPort = "NEUROCALC_SERVER_HTTP_PORT"

	// NeurocalcServerGRPCPort is the environment variable used to determine the gRPC port
	NeurocalcServerGRPCPort = "NEUROCALC_SERVER_GRPC_PORT"

	// NeurocalcModelsOrigin is the environment variable used to override the model artifact origin
	NeurocalcModelsOrigin = "NEUROCALC_MODELS_ORIGIN"
)
