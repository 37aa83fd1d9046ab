package timescaledb

const createTableSQL = `
CREATE TABLE IF NOT EXISTS weather (
    time timestamp WITH TIME ZONE NOT NULL,
    stationname text NULL,
    stationtype text NULL,
    sessionid text NULL,
    barometer float4 NULL,
    intemp float4 NULL,
    inhumidity float4 NULL,
    outtemp float4 NULL,
    outhumidity float4 NULL,
    windspeed float4 NULL,
    windgust float4 NULL,
    winddir float4 NULL,
    windchill float4 NULL,
    heatindex float4 NULL,
    dewpoint float4 NULL,
    solarwatts float4 NULL,
    uv float4 NULL,
    rainincremental float4 NULL,
    intempbatterystatus int2 NULL,
    outtempbatterystatus int2 NULL,
    txbatterystatus int2 NULL
);`

const createExtensionSQL = `CREATE EXTENSION IF NOT EXISTS timescaledb;`

const createHypertableSQL = `SELECT create_hypertable('weather', 'time', if_not_exists => true);`

const createIndexSQL = `CREATE INDEX IF NOT EXISTS weather_stationname_time_idx ON weather (stationname, time DESC);`

// Postgres has no CREATE TYPE IF NOT EXISTS; a failure here usually means the
// type already exists.
const createCircAvgStateTypeSQL = `CREATE TYPE circular_avg_state AS (
    sin_sum real,
    cos_sum real,
    accum real
);`

const createCircAvgStateFunctionSQL = `CREATE OR REPLACE FUNCTION circular_avg_state_accumulator(state circular_avg_state, reading real)
RETURNS circular_avg_state
STRICT
IMMUTABLE
LANGUAGE plpgsql
AS $$
BEGIN
    RETURN ROW(state.sin_sum + SIND(reading), state.cos_sum + COSD(reading), state.accum + 1)::public.circular_avg_state;
END;
$$;`

const createCircAvgCombinerFunctionSQL = `CREATE OR REPLACE FUNCTION circular_avg_state_combiner(state1 circular_avg_state, state2 circular_avg_state)
RETURNS circular_avg_state
STRICT
IMMUTABLE
LANGUAGE plpgsql
AS $$
BEGIN
    RETURN ROW(state1.sin_sum + state2.sin_sum, state1.cos_sum + state2.cos_sum, state1.accum + state2.accum)::public.circular_avg_state;
END;
$$;`

const createCircAvgFinalizerFunctionSQL = `CREATE OR REPLACE FUNCTION circular_avg_final(state circular_avg_state)
RETURNS real
STRICT
IMMUTABLE
LANGUAGE plpgsql
AS $$
DECLARE
    result real;
BEGIN
    result := ATAN2D(state.sin_sum / state.accum, state.cos_sum / state.accum);
    IF result < 0 THEN
        result := result + 360;
    END IF;
    RETURN result;
END;
$$;`

const createCircAvgAggregateFunctionSQL = `CREATE OR REPLACE AGGREGATE circular_avg (real)
(
    SFUNC = circular_avg_state_accumulator,
    STYPE = public.circular_avg_state,
    COMBINEFUNC = circular_avg_state_combiner,
    FINALFUNC = circular_avg_final,
    INITCOND = '(0,0,0)',
    PARALLEL = SAFE
);`

const create1hViewSQL = `CREATE MATERIALIZED VIEW IF NOT EXISTS weather_1h
WITH (timescaledb.continuous, timescaledb.materialized_only = false)
AS
SELECT
    time_bucket('1 hour', time) as bucket,
    stationname,
    stationtype,
    avg(barometer) as barometer,
    min(barometer) as min_barometer,
    max(barometer) as max_barometer,
    avg(intemp) as intemp,
    avg(inhumidity) as inhumidity,
    avg(outtemp) as outtemp,
    min(outtemp) as min_outtemp,
    max(outtemp) as max_outtemp,
    avg(outhumidity) as outhumidity,
    circular_avg(winddir) as winddir,
    avg(windspeed) as windspeed,
    max(windgust) as max_windgust,
    min(windchill) as min_windchill,
    max(heatindex) as max_heatindex,
    avg(dewpoint) as dewpoint,
    avg(solarwatts) as solarwatts,
    max(uv) as max_uv,
    sum(rainincremental) as period_rain
FROM
    weather
GROUP BY bucket, stationname, stationtype;`

const addAggregationPolicy1hSQL = `SELECT add_continuous_aggregate_policy('weather_1h', INTERVAL '2 years', INTERVAL '1 hour', INTERVAL '1 hour', if_not_exists => true);`

const dropRainSinceMidnightViewSQL = `DROP VIEW IF EXISTS today_rainfall;`

const createRainSinceMidnightViewSQL = `CREATE VIEW today_rainfall AS
SELECT stationname, COALESCE(SUM(rainincremental), 0) AS total_rain
FROM weather
WHERE time >= date_trunc('day', now())
GROUP BY stationname;`
