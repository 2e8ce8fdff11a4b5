package conf

var (
	// DefaultMetadataDB specifies which database is used to store run metadata.
	DefaultMetadataDB = NewStringFlag("metadata_db", "Database for storing run metadata: cassandra or influxdb", "cassandra")

	// CassandraAddress represents cassandra address flag.
	CassandraAddress = NewStringFlag("cassandra_addr", "Address of Cassandra DB endpoint", "127.0.0.1")

	// CassandraPort represents cassandra port flag.
	CassandraPort = NewIntFlag("cassandra_port", "Port of Cassandra DB endpoint", 9042)

	// CassandraUsername holds the user name which will be presented when connecting to the cluster at 'cassandra_addr'.
	CassandraUsername = NewStringFlag("cassandra_username", "The user name which will be presented when connecting to the cluster at 'cassandra_addr'", "")

	// CassandraPassword holds the password which will be presented when connecting to the cluster at 'cassandra_addr'.
	CassandraPassword = NewStringFlag("cassandra_password", "The password which will be presented when connecting to the cluster at 'cassandra_addr'", "")

	// CassandraConnectionTimeout limits the time spent establishing a connection, in seconds.
	CassandraConnectionTimeout = NewIntFlag("cassandra_timeout_connect", "Cassandra connection timeout in seconds", 5)

	// CassandraTimeout limits the time spent executing a query, in seconds.
	CassandraTimeout = NewIntFlag("cassandra_timeout", "Cassandra query timeout in seconds", 5)

	// CassandraCreateKeyspace makes the metadata store create its keyspace on startup.
	CassandraCreateKeyspace = NewBoolFlag("cassandra_create_keyspace", "Create the keyspace for metadata if it does not exist", true)

	// CassandraIgnorePeerAddr disables address translation for discovered peers.
	CassandraIgnorePeerAddr = NewBoolFlag("cassandra_ignore_peer_addr", "Ignore the peer addresses reported by the cluster", false)

	// CassandraInitialHostLookup enables host discovery on connect. Disable when
	// the contact point is a single node behind a NAT.
	CassandraInitialHostLookup = NewBoolFlag("cassandra_initial_host_lookup", "Lookup the cluster topology on connect", true)

	// CassandraKeyspaceName is the keyspace that holds the metadata table.
	CassandraKeyspaceName = NewStringFlag("cassandra_keyspace_name", "Keyspace for run metadata", "chronos")

	// CassandraSslEnabled enables SSL for the Cassandra connection.
	CassandraSslEnabled = NewBoolFlag("cassandra_ssl", "Enable SSL for the Cassandra connection", false)

	// CassandraSslHostValidation enables verification of the Cassandra server identity.
	CassandraSslHostValidation = NewBoolFlag("cassandra_ssl_host_validation", "Validate the Cassandra server identity (requires 'cassandra_ssl_ca_path')", false)

	// CassandraSslCAPath points at the certificate authority used for host validation.
	CassandraSslCAPath = NewStringFlag("cassandra_ssl_ca_path", "Path to the CA certificate for the Cassandra connection", "")

	// CassandraSslCertPath points at the client certificate.
	CassandraSslCertPath = NewStringFlag("cassandra_ssl_cert_path", "Path to the client certificate for the Cassandra connection", "")

	// CassandraSslKeyPath points at the client key.
	CassandraSslKeyPath = NewStringFlag("cassandra_ssl_key_path", "Path to the client key for the Cassandra connection", "")

	// InfluxDBAddress represents InfluxDB address flag.
	InfluxDBAddress = NewIPFlag("influxdb_addr", "Address of InfluxDB DB endpoint", "127.0.0.1")

	// InfluxDBPort represents InfluxDB port flag.
	InfluxDBPort = NewIntFlag("influxdb_port", "Port of InfluxDB DB endpoint", 8086)

	// InfluxDBUsername holds the user name which will be presented when connecting to the database at 'influxdb_addr'.
	InfluxDBUsername = NewStringFlag("influxdb_username", "The user name which will be presented when connecting to the database at 'influxdb_addr'", "")

	// InfluxDBPassword holds the password which will be presented when connecting to the database at 'influxdb_addr'.
	InfluxDBPassword = NewStringFlag("influxdb_password", "The password which will be presented when connecting to the database at 'influxdb_addr'", "")

	// InfluxDBName is the database that holds the metadata measurement.
	InfluxDBName = NewStringFlag("influxdb_name", "InfluxDB database for run metadata", "chronos")

	// InfluxDBCreateDatabase makes the metadata store create its database on startup.
	InfluxDBCreateDatabase = NewBoolFlag("influxdb_create_database", "Create the database for metadata if it does not exist", true)

	// InfluxDBInsecureSkipVerify disables certificate verification for https endpoints.
	InfluxDBInsecureSkipVerify = NewBoolFlag("influxdb_insecure_skip_verify", "Skip certificate verification when connecting to InfluxDB over https", false)
)
